package testcontainers

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const sftpImage = "atmoz/sftp:alpine"

// SFTPContainer represents an SFTP server container. The user is chrooted to
// its home directory and can write below /Dir.
type SFTPContainer struct {
	Container testcontainers.Container
	Host      string
	Port      int
	Username  string
	Password  string
	Dir       string
}

// StartSFTPContainer starts an SFTP server container with one password user
func StartSFTPContainer(ctx context.Context, username, password string) (*SFTPContainer, error) {
	const dir = "upload"

	req := testcontainers.ContainerRequest{
		Image:        sftpImage,
		Cmd:          []string{fmt.Sprintf("%s:%s:::%s", username, password, dir)},
		ExposedPorts: []string{"22/tcp"},
		WaitingFor:   wait.ForListeningPort("22/tcp").WithStartupTimeout(60 * time.Second),
	}

	// Start the container
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	// Get the container's host and port
	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mappedPort, err := container.MappedPort(ctx, "22/tcp")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	return &SFTPContainer{
		Container: container,
		Host:      host,
		Port:      mappedPort.Int(),
		Username:  username,
		Password:  password,
		Dir:       "/" + dir,
	}, nil
}

// Stop stops the SFTP server container
func (c *SFTPContainer) Stop(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}
