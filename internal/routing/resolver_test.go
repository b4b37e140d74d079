package routing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbridge/internal/logger"
	"sgbridge/internal/shotgun"
)

type fakeRegistry struct {
	projects map[int64]*shotgun.Project
	err      error
}

func (f *fakeRegistry) FindProject(ctx context.Context, id int64) (*shotgun.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	project, ok := f.projects[id]
	if !ok {
		return nil, fmt.Errorf("Project %d: %w", id, shotgun.ErrNotFound)
	}
	return project, nil
}

func TestResolverProjectNotFound(t *testing.T) {
	registry := &fakeRegistry{projects: map[int64]*shotgun.Project{}}
	resolver := NewProjectResolver(registry, logger.NopLogger())

	route, err := resolver.Resolve(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, route)
}

func TestResolverExtractsWebLink(t *testing.T) {
	registry := &fakeRegistry{projects: map[int64]*shotgun.Project{
		1: {
			ID:   1,
			Name: "Bunny",
			SyncURLField: map[string]interface{}{
				"link_type": "web",
				"url":       "http://localhost:9090/sg2jira/default/",
			},
		},
	}}
	resolver := NewProjectResolver(registry, logger.NopLogger())

	route, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, "http://localhost:9090/sg2jira/default", *route)
}

func TestResolverNoRouteCases(t *testing.T) {
	tests := []struct {
		name  string
		field interface{}
	}{
		{"unset field", nil},
		{"non dict field", "http://localhost:9090"},
		{"non web link", map[string]interface{}{"link_type": "upload", "url": "http://x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := &fakeRegistry{projects: map[int64]*shotgun.Project{
				1: {ID: 1, Name: "Bunny", SyncURLField: tt.field},
			}}
			resolver := NewProjectResolver(registry, logger.NopLogger())

			route, err := resolver.Resolve(context.Background(), 1)
			require.NoError(t, err)
			assert.Nil(t, route)
		})
	}
}

func TestResolverTransportErrorSurfaced(t *testing.T) {
	registry := &fakeRegistry{err: fmt.Errorf("registry unreachable")}
	resolver := NewProjectResolver(registry, logger.NopLogger())

	_, err := resolver.Resolve(context.Background(), 1)
	assert.Error(t, err)
}
