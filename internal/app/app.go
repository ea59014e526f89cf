// Package app wires configuration, storage, the model client and the HTTP
// surface into one runnable unit.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"taskweave/internal/archive"
	"taskweave/internal/command"
	"taskweave/internal/config"
	"taskweave/internal/llm"
	"taskweave/internal/project"
	"taskweave/internal/server"
	"taskweave/internal/store"
	"taskweave/internal/task"
)

type App struct {
	server *server.Server
	llm    llm.Client
	store  *store.Store
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		return nil, err
	}

	var st *store.Store
	if cfg.StorePG != "" {
		st, err = store.NewPostgres(cfg.StorePG)
		if err != nil {
			log.Printf("postgres store unavailable, using file store: %v", err)
			st = store.New(cfg.StorePath)
		}
	} else {
		st = store.New(cfg.StorePath)
	}

	var arch *archive.Archive
	if cfg.Archive.Enabled {
		arch, err = archive.New(archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			// The archive is best-effort enrichment; run without it.
			log.Printf("transcript archive disabled: %v", err)
			arch = nil
		}
	}

	collab := task.NewCollaborators(client)
	describer := project.NewFileDescriber(client)

	var archiver task.TranscriptArchiver
	if arch != nil {
		archiver = arch
	}
	orchestrator := task.NewOrchestrator(st, collab, collab, collab, archiver)

	handler := &server.Handler{
		Projects:  project.NewManager(),
		Executor:  &command.Executor{Describer: describer},
		Tasks:     orchestrator,
		Describer: describer,
		Archive:   arch,
	}

	srv := server.New(cfg.Port, server.NewMux(handler))
	return &App{server: srv, llm: client, store: st}, nil
}

func newLLMClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "fake":
		log.Printf("using fake model client")
		return llm.NewFakeClient(), nil
	case "gemini":
		client, err := llm.NewGeminiClient(context.Background(), cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		return llm.Wrap(client, llm.Retry(3, 500*time.Millisecond), llm.Logged()), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.llm.Close(); cerr != nil {
		log.Printf("close llm client: %v", cerr)
	}
	if cerr := a.store.Close(); cerr != nil {
		log.Printf("close store: %v", cerr)
	}
	return err
}
