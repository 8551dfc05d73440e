package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sourcegraph/conc/pool"

	"github.com/picklr-io/infraviz/internal/logging"
)

// DockerRunner runs every command in a throwaway container from Image, with
// the command's directories bind-mounted at the same paths.
// It is safe for concurrent use.
type DockerRunner struct {
	Image string

	clientOnce sync.Once
	client     *client.Client
	clientErr  error
}

var errRunnerClosed = errors.New("docker runner is closed")

func NewDockerRunner(image string) *DockerRunner {
	return &DockerRunner{Image: image}
}

// ensureClient creates the Docker client on first use. Every caller gets the
// same client, or the same creation error.
func (r *DockerRunner) ensureClient() (*client.Client, error) {
	r.clientOnce.Do(func() {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			r.clientErr = fmt.Errorf("failed to create Docker client: %w", err)
			return
		}
		r.client = cli
	})
	return r.client, r.clientErr
}

// ensureImage pulls the runner image if the daemon does not have it yet.
func (r *DockerRunner) ensureImage(ctx context.Context) error {
	if _, _, err := r.client.ImageInspectWithRaw(ctx, r.Image); err == nil {
		return nil
	} else if !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", r.Image, err)
	}

	logging.Info("pulling runner image", "image", r.Image)
	reader, err := r.client.ImagePull(ctx, r.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", r.Image, err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (r *DockerRunner) Run(ctx context.Context, cmd Command, onLine func(string)) error {
	if _, err := r.ensureClient(); err != nil {
		return err
	}
	if _, err := r.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}
	if err := r.ensureImage(ctx); err != nil {
		return err
	}

	binds := []string{cmd.Dir + ":" + cmd.Dir}
	for _, m := range cmd.Mounts {
		binds = append(binds, m+":"+m)
	}

	resp, err := r.client.ContainerCreate(ctx,
		&container.Config{
			Image:      r.Image,
			Entrypoint: []string{cmd.Name},
			Cmd:        cmd.Args,
			Env:        envList(cmd.Env),
			WorkingDir: cmd.Dir,
		},
		&container.HostConfig{Binds: binds},
		&network.NetworkingConfig{},
		&v1.Platform{},
		"",
	)
	if err != nil {
		return fmt.Errorf("failed to create container for %s: %w", cmd, err)
	}
	defer func() {
		if err := r.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); err != nil {
			logging.Warn("failed to remove runner container", "id", resp.ID, "error", err)
		}
	}()

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container for %s: %w", cmd, err)
	}

	logs, err := r.client.ContainerLogs(ctx, resp.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to attach to container logs: %w", err)
	}
	defer logs.Close()

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	tail := newLineTail(stderrLines)

	p := pool.New()
	p.Go(func() { scanLines(outR, onLine) })
	p.Go(func() { scanLines(errR, tail.add) })
	_, copyErr := stdcopy.StdCopy(outW, errW, logs)
	outW.CloseWithError(copyErr)
	errW.CloseWithError(copyErr)
	p.Wait()

	statusCh, errCh := r.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed waiting for %s: %w", cmd, err)
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return &ExitError{Command: cmd.String(), Code: int(status.StatusCode), Stderr: tail.String()}
		}
	}
	return nil
}

// Close releases the Docker client. A runner that never ran a command has
// nothing to release; either way later Runs fail.
func (r *DockerRunner) Close() error {
	r.clientOnce.Do(func() { r.clientErr = errRunnerClosed })
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
