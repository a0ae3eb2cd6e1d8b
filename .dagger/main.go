// Chatstream CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/chatstream/internal/dagger"
)

// Chatstream is the main module for the chatstream CI/CD pipeline
type Chatstream struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Chatstream CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Chatstream {
	return &Chatstream{
		Source: source,
	}
}

// goContainer returns an Alpine-based Go container with the project source
// mounted. Nothing in chatstream needs CGO.
func (c *Chatstream) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", c.Source)
}

// Test runs the chatstream unit tests via "go test"
//
// +check
func (c *Chatstream) Test(ctx context.Context) (string, error) {
	return c.goContainer().
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}

// Vet runs "go vet" over the module
//
// +check
func (c *Chatstream) Vet(ctx context.Context) (string, error) {
	return c.goContainer().
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
