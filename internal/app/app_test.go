package app

import (
	"context"
	"errors"
	"testing"

	"github.com/coursechat/coursechat/internal/config"
	"github.com/coursechat/coursechat/internal/log"
)

func TestSetupNilConfig(t *testing.T) {
	_, err := Setup(context.Background(), nil, log.NewNop())
	if !errors.Is(err, config.ErrConfigNil) {
		t.Errorf("err = %v, want ErrConfigNil", err)
	}
}

func TestCloseEmptyApp(t *testing.T) {
	a := &App{Logger: log.NewNop()}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOtelShutdownDisabledWithoutEndpoint(t *testing.T) {
	cfg := &config.Config{}
	cleanup := provideOtelShutdown(context.Background(), cfg, log.NewNop())
	if cleanup == nil {
		t.Fatal("expected a no-op cleanup func")
	}
	cleanup()
}
