//go:build js && wasm
// +build js,wasm

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/MeKo-Tech/noiseloops/internal/export"
	"github.com/MeKo-Tech/noiseloops/internal/loops"
	"github.com/MeKo-Tech/noiseloops/internal/noise"
)

// TileRequest is a tileable image request from JS.
type TileRequest struct {
	Source string  `json:"source"`
	Size   int     `json:"size"`
	Step   float64 `json:"step"`
	Seed   *int64  `json:"seed"`
}

// generateTile renders a tileable grayscale image and returns it as a PNG
// data URL.
func generateTile(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "missing arguments"}
	}

	var req TileRequest
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return map[string]interface{}{"error": fmt.Sprintf("failed to parse request: %v", err)}
	}
	if req.Size == 0 {
		req.Size = 256
	}
	if req.Step == 0 {
		req.Step = loops.DefaultXStep
	}
	seed := noise.DefaultSeed
	if req.Seed != nil {
		seed = *req.Seed
	}
	src, err := noise.Lookup(req.Source)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	buf, err := loops.Tileable2D[float32](context.Background(), loops.TileableParams{
		NX: req.Size, NY: req.Size, XStep: req.Step,
	}, loops.Options{Seed: seed, Source: src, Workers: 1})
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	data, err := export.EncodePNG(export.GrayImage(buf.Data, buf.Width(), buf.Height()))
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	return map[string]interface{}{
		"url":  "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
		"size": req.Size,
	}
}

func main() {
	c := make(chan struct{})

	js.Global().Set("noiseloopsTile", js.FuncOf(generateTile))

	fmt.Println("noiseloops WASM module loaded")
	<-c
}
