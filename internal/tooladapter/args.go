package tooladapter

import (
	"fmt"

	"formbridge.dev/formbridge/internal/domain"
	"formbridge.dev/formbridge/internal/pkg/apperrors"
)

func getString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", apperrors.InvalidRequest(fmt.Sprintf("argument %q must be a string", key))
	}
	return s, nil
}

func requireString(args map[string]any, key string) (string, error) {
	s, err := getString(args, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", apperrors.InvalidRequest(fmt.Sprintf("argument %q is required", key))
	}
	return s, nil
}

func getFields(args map[string]any, key string) (map[string]any, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.InvalidRequest(fmt.Sprintf("argument %q must be an object", key))
	}
	return m, nil
}

func getInt64(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, apperrors.InvalidRequest(fmt.Sprintf("argument %q must be a number", key))
	}
}

func requireActor(args map[string]any) (domain.Actor, error) {
	v, ok := args["actor"]
	if !ok {
		return domain.Actor{}, apperrors.InvalidRequest(`argument "actor" is required`)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return domain.Actor{}, apperrors.InvalidRequest(`argument "actor" must be an object with "kind" and "id"`)
	}
	kind, _ := m["kind"].(string)
	id, _ := m["id"].(string)
	if kind == "" || id == "" {
		return domain.Actor{}, apperrors.InvalidRequest(`argument "actor" requires non-empty "kind" and "id"`)
	}
	name, _ := m["name"].(string)
	return domain.Actor{Kind: domain.ActorKind(kind), ID: id, Name: name}, nil
}
