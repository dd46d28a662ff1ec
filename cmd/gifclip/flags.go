package main

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-gifclip-service/internal/domain/entity"
)

// pauseList collects repeated -pause START-END flags, in seconds.
type pauseList []entity.PauseWindow

func (p *pauseList) String() string {
	parts := make([]string, 0, len(*p))
	for _, w := range *p {
		parts = append(parts, fmt.Sprintf("%g-%g", w.Start, w.End))
	}
	return strings.Join(parts, ",")
}

func (p *pauseList) Set(value string) error {
	startStr, endStr, ok := strings.Cut(value, "-")
	if !ok {
		return fmt.Errorf("pause %q: want START-END", value)
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(startStr), 64)
	if err != nil {
		return fmt.Errorf("pause %q: bad start: %w", value, err)
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(endStr), 64)
	if err != nil {
		return fmt.Errorf("pause %q: bad end: %w", value, err)
	}
	*p = append(*p, entity.PauseWindow{Start: start, End: end})
	return nil
}

// parseSize reads WIDTHxHEIGHT. An empty string is the empty rectangle.
func parseSize(s string) (image.Rectangle, error) {
	if s == "" {
		return image.Rectangle{}, nil
	}
	wStr, hStr, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return image.Rectangle{}, fmt.Errorf("size %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(wStr)
	if err != nil || w <= 0 {
		return image.Rectangle{}, fmt.Errorf("size %q: bad width", s)
	}
	h, err := strconv.Atoi(hStr)
	if err != nil || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("size %q: bad height", s)
	}
	return image.Rect(0, 0, w, h), nil
}
