package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"ynot/internal/bootstrap"
	"ynot/internal/domain"
	"ynot/internal/transcript"
	"ynot/internal/usecase"
)

const (
	eventState = "ynot:state"
	eventLog   = "ynot:log"
)

// App is the Wails application root.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	services *bootstrap.Services
	bootErr  error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(bootstrap.Options{
		Version:       version,
		Opener:        a,
		Alerter:       a,
		StateListener: a,
		LogListeners:  []transcript.Listener{a.emitLog},
	})
	if err != nil {
		a.bootErr = err
		a.RecognitionStateChanged(a.GetStatus())
		return
	}
	a.services = services

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go func() {
		if err := services.Dispatcher.Run(runCtx); err != nil {
			services.Logger.Error("dispatch loop stopped", zap.Error(err))
		}
	}()

	// Listening starts with the window; unsupported devices just log a notice.
	if err := services.Controller.Start(runCtx); err != nil && !errors.Is(err, usecase.ErrRecognitionUnsupported) {
		services.Logger.Warn("auto-start failed", zap.Error(err))
	}
}

func (a *App) shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.services == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.services.Close(closeCtx); err != nil {
		a.services.Logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// Toggle flips listening, the microphone button.
func (a *App) Toggle() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	return a.services.Controller.Toggle(a.ctx), nil
}

// Submit runs a typed command and returns its outcome.
func (a *App) Submit(text string) (domain.DispatchOutcome, error) {
	if err := a.requireReady(); err != nil {
		return domain.DispatchOutcome{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.DispatchOutcome{}, errors.New("nothing to submit")
	}
	return a.services.Submit(a.ctx, text), nil
}

// GetStatus returns the current recognition status.
func (a *App) GetStatus() domain.Status {
	if a.services == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.RecognitionError, Message: "Startup failed: " + a.bootErr.Error()}
		}
		return domain.Status{State: domain.RecognitionIdle}
	}
	return a.services.Controller.Status()
}

// GetHistory returns the transcript log, newest first.
func (a *App) GetHistory() []domain.LogEntry {
	if a.services == nil {
		return []domain.LogEntry{}
	}
	return a.services.Log.Entries()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.services == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	return map[string]string{
		"version":     version,
		"provider":    "Deepgram",
		"model":       cfg.Deepgram.Model,
		"language":    cfg.Deepgram.Language,
		"rulesFile":   cfg.Rules.Path,
		"audioInput":  cfg.Audio.InputDevice,
		"speech":      cfg.Speech.Command,
		"intents":     strings.Join(a.services.Intents.Names(), ", "),
		"weatherCity": cfg.Providers.Weather.Location,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// RecognitionStateChanged emits listening updates to the frontend.
func (a *App) RecognitionStateChanged(status domain.Status) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, status)
}

func (a *App) emitLog(entry domain.LogEntry) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventLog, entry)
}

// Open shows a link in the system browser.
func (a *App) Open(url string) error {
	if a.ctx == nil {
		return errors.New("window is not ready")
	}
	runtime.BrowserOpenURL(a.ctx, url)
	return nil
}

// Alert is the visible fallback when speech output is unavailable.
func (a *App) Alert(title string, message string) error {
	if a.ctx == nil {
		return errors.New("window is not ready")
	}
	_, err := runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
		Type:    runtime.InfoDialog,
		Title:   title,
		Message: message,
	})
	return err
}
