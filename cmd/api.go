package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/massctl/internal/auth"
	"github.com/desertthunder/massctl/internal/services"
	"github.com/desertthunder/massctl/internal/shared"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

// apiService builds an HTTP client for the saved server.
//
// Requests carry the session's credentials, the headers of a captured cURL command
// (--curl), or nothing (--anonymous).
func (r *Runner) apiService(ctx context.Context, cmd *cli.Command) (*services.APIService, error) {
	curlPath := cmd.String("curl")
	if cmd.Bool("anonymous") || curlPath != "" {
		if err := r.open(ctx); err != nil {
			return nil, err
		}

		var captured *shared.CapturedRequest
		if curlPath != "" {
			c, err := shared.ReadCurlFile(curlPath)
			if err != nil {
				return nil, err
			}
			captured = c
		}

		raw, port := r.savedAddress(ctx)
		if captured != nil && captured.URL != "" {
			raw, port = shared.Origin(captured.URL), 0
		}
		target, err := auth.Address(raw, port)
		if err != nil {
			return nil, err
		}

		api := services.NewAPIService(target, r.httpClient)
		if captured != nil {
			api = api.WithHeader(captured.Header)
		}
		return api, nil
	}

	if err := r.connect(ctx); err != nil {
		return nil, err
	}

	s := r.manager.Session()
	api := services.NewAPIService(s.ServerURL, r.httpClient).WithHeader(r.manager.Header())
	if s.Strategy != nil && s.Strategy.Kind == auth.KindNative {
		if token, ok, err := r.secrets.Get(ctx, auth.SecretToken); err == nil && ok {
			api = api.WithToken(ctx, token)
		}
	}
	return api, nil
}

func (r *Runner) writeResponse(resp *services.APIResponse, pretty bool) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// APIGet makes a direct GET request to the server
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		path = "/info"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	api, err := r.apiService(ctx, cmd)
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "url", api.BaseURL(), "path", path)
	resp, err := api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeResponse(resp, cmd.Bool("pretty"))
}

// APICommand runs a server command through the HTTP command endpoint
func (r *Runner) APICommand(ctx context.Context, cmd *cli.Command) error {
	command := cmd.StringArg("command")
	if command == "" {
		return fmt.Errorf("%w: command", shared.ErrMissingArgument)
	}

	var args map[string]any
	if raw := cmd.String("args"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return fmt.Errorf("%w: --args is not a JSON object: %v", shared.ErrInvalidArgument, err)
		}
	}

	api, err := r.apiService(ctx, cmd)
	if err != nil {
		return err
	}

	r.logger.Info("command request", "command", command)
	resp, err := api.Command(ctx, command, args)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeResponse(resp, cmd.Bool("pretty"))
}
