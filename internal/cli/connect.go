package cli

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/api/option"

	"github.com/roach88/classprep/internal/config"
	"github.com/roach88/classprep/internal/engine"
	"github.com/roach88/classprep/internal/google"
	"github.com/roach88/classprep/internal/model"
)

// Services are the remote collaborators of a run.
type Services struct {
	Files      engine.FileService
	Coursework engine.CourseworkService
	Courses    engine.CourseLister
}

// Connector authorizes the services a run needs. Drive access is only
// requested when needDrive is set. A credential failure is returned as an
// engine AUTH_FAILURE error.
type Connector func(ctx context.Context, cfg *config.Config, needDrive bool, prompt io.Writer) (*Services, error)

// ConnectGoogle authorizes Classroom (and Drive) with cached OAuth tokens,
// falling back to the interactive consent flow.
func ConnectGoogle(ctx context.Context, cfg *config.Config, needDrive bool, prompt io.Writer) (*Services, error) {
	auth := &google.Authorizer{
		Prompt:         prompt,
		RedirectPort:   cfg.OAuth.RedirectPort,
		ConsentTimeout: cfg.ConsentTimeout(),
	}

	classHTTP, err := auth.Obtain(ctx, google.ClassroomScopes, cfg.ClassroomTokenPath(), cfg.ClassroomSecretPath())
	if err != nil {
		return nil, engine.NewAuthError(model.ServiceClassroom, err)
	}
	cls, err := google.NewClassroom(ctx, option.WithHTTPClient(classHTTP))
	if err != nil {
		return nil, fmt.Errorf("connect classroom: %w", err)
	}
	services := &Services{Coursework: cls, Courses: cls}
	if !needDrive {
		return services, nil
	}

	driveHTTP, err := auth.Obtain(ctx, google.DriveScopes, cfg.DriveTokenPath(), cfg.DriveSecretPath())
	if err != nil {
		return nil, engine.NewAuthError(model.ServiceDrive, err)
	}
	drv, err := google.NewDrive(ctx, option.WithHTTPClient(driveHTTP))
	if err != nil {
		return nil, fmt.Errorf("connect drive: %w", err)
	}
	services.Files = drv
	return services, nil
}
