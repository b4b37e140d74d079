package routing

import (
	"context"

	"sgbridge/internal/logger"
	"sgbridge/internal/shotgun"
)

// RegistryClient is the slice of the Shotgun client the resolver needs.
type RegistryClient interface {
	FindProject(ctx context.Context, id int64) (*shotgun.Project, error)
}

// ProjectResolver resolves a project's sync endpoint from the registry.
type ProjectResolver struct {
	client RegistryClient
	logger logger.Logger
}

func NewProjectResolver(client RegistryClient, log logger.Logger) *ProjectResolver {
	return &ProjectResolver{
		client: client,
		logger: log,
	}
}

// Resolve fetches the project and extracts its sync url. A missing project
// or an unusable field value yields no route without an error; only registry
// transport failures are returned as errors.
func (r *ProjectResolver) Resolve(ctx context.Context, projectID int64) (*string, error) {
	r.logger.InfowCtx(ctx, "Retrieving sync routing for project", "project_id", projectID)

	project, err := r.client.FindProject(ctx, projectID)
	if err != nil {
		if shotgun.IsNotFound(err) {
			r.logger.WarnwCtx(ctx, "Unable to find project in registry, skipping event",
				"project_id", projectID,
			)
			return nil, nil
		}
		return nil, err
	}

	syncURL, ok := shotgun.SyncURLFromField(project.SyncURLField)
	if !ok {
		if project.SyncURLField != nil {
			r.logger.WarnwCtx(ctx, "Sync URL could not be extracted, expected a web link value",
				"project_id", projectID,
				"field_value", project.SyncURLField,
			)
		}
		return nil, nil
	}

	return &syncURL, nil
}
