package main

import (
	"context"
	"time"

	"github.com/GriffinCanCode/subtrans/internal/config"
	"github.com/GriffinCanCode/subtrans/internal/display"
	"github.com/GriffinCanCode/subtrans/internal/grpcclient"
	"github.com/GriffinCanCode/subtrans/internal/ocr"
	"github.com/GriffinCanCode/subtrans/internal/orchestrator"
	"github.com/GriffinCanCode/subtrans/internal/screen"
	"github.com/GriffinCanCode/subtrans/internal/trace"
)

// sidecarWait bounds how long startup waits for the OCR sidecar's models.
const sidecarWait = 15 * time.Second

type pipeline struct {
	mgr     *orchestrator.Manager
	sidecar *grpcclient.Client
}

// buildPipeline wires capture, both OCR engines and the controller. A missing
// sidecar or tesseract binary only disables that engine.
func buildPipeline(ctx context.Context, store *config.Store, sink display.Sink) *pipeline {
	cfg := store.Snapshot()
	log := trace.Logger(ctx)
	p := &pipeline{}

	var local, native ocr.Recognizer
	if sidecar, err := grpcclient.New(cfg.OCRAddr); err != nil {
		log.Warn("ocr sidecar disabled", "addr", cfg.OCRAddr, "error", err)
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, sidecarWait)
		err := sidecar.WaitReady(waitCtx)
		cancel()
		if err != nil {
			log.Warn("ocr sidecar not ready, using native ocr only", "addr", cfg.OCRAddr, "error", err)
			_ = sidecar.Close()
		} else {
			log.Info("ocr sidecar ready", "addr", cfg.OCRAddr)
			p.sidecar = sidecar
			local = sidecar
		}
	}
	if tess := ocr.NewTesseract(cfg.OCRCommand); tess.Available() {
		native = tess
	} else {
		log.Warn("native ocr binary not found", "command", cfg.OCRCommand)
	}

	router := ocr.NewRouter(local, native, ocr.Options{
		MinConfidence: cfg.OCR.MinConfidence,
		MaxLines:      cfg.OCR.MaxLines,
	})
	p.mgr = orchestrator.New(store, orchestrator.Deps{
		Capturer: screen.New(),
		OCR:      router,
		Sink:     sink,
	})
	return p
}

func (p *pipeline) Close() error {
	err := p.mgr.Close()
	if p.sidecar != nil {
		_ = p.sidecar.Close()
	}
	return err
}
