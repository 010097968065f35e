// Package dockertest runs throwaway service containers for integration tests.
package dockertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrUnavailable wraps every reason a container could not be provided.
var ErrUnavailable = errors.New("dockertest: service unavailable")

// Container describes one service. When the environment variable named by
// External is set, its value is used as the address and no container runs.
type Container struct {
	Name  string
	Image string
	// ImageEnv overrides Image when set.
	ImageEnv string
	External string
	// HostPort is published to ContainerPort on 127.0.0.1.
	HostPort      string
	ContainerPort string
	Env           []string
	// Ready reports nil once the service at addr accepts work.
	Ready        func(ctx context.Context, addr string) error
	ReadyTimeout time.Duration

	mu      sync.Mutex
	once    sync.Once
	err     error
	started bool
}

// Addr is the address tests should connect to.
func (c *Container) Addr() string {
	if v := os.Getenv(c.External); c.External != "" && v != "" {
		return v
	}
	return "127.0.0.1:" + c.HostPort
}

func (c *Container) external() bool {
	return c.External != "" && os.Getenv(c.External) != ""
}

// Start launches the container once and waits for Ready. Later calls return
// the first result.
func (c *Container) Start() error {
	c.once.Do(func() {
		if !c.external() {
			if err := dockerAvailable(); err != nil {
				c.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
				return
			}
			_ = c.remove()
			if err := c.run(); err != nil {
				c.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
				return
			}
			c.mu.Lock()
			c.started = true
			c.mu.Unlock()
		}
		if err := c.wait(); err != nil {
			c.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	})
	return c.err
}

// Stop removes the container if Start launched one.
func (c *Container) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false
	return c.remove()
}

func (c *Container) image() string {
	if c.ImageEnv != "" {
		if v := os.Getenv(c.ImageEnv); v != "" {
			return v
		}
	}
	return c.Image
}

func (c *Container) run() error {
	args := []string{"run", "-d", "--rm", "--name", c.Name,
		"-p", "127.0.0.1:" + c.HostPort + ":" + c.ContainerPort}
	for _, e := range c.Env {
		args = append(args, "-e", e)
	}
	return docker(append(args, c.image())...)
}

func (c *Container) remove() error {
	err := docker("rm", "-f", c.Name)
	if err != nil && strings.Contains(err.Error(), "No such container") {
		return nil
	}
	return err
}

func (c *Container) wait() error {
	timeout := c.ReadyTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		err := c.Ready(ctx, c.Addr())
		cancel()
		if err == nil {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%s not ready after %s: %w", c.Name, timeout, err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func dockerAvailable() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return err
	}
	return exec.Command("docker", "info").Run()
}

func docker(args ...string) error {
	out, err := exec.Command("docker", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
