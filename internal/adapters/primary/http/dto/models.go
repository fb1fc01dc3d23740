package dto

import (
	"path/filepath"

	"bloodcell-inference-service/internal/core/domain"
)

type ModelsResponse struct {
	Success bool                `json:"success"`
	Models  domain.Availability `json:"models"`
}

type ModelDetailResponse struct {
	Success bool           `json:"success"`
	Model   ModelDetailDTO `json:"model"`
}

type ModelDetailDTO struct {
	ID          string   `json:"id"`
	Task        string   `json:"task"`
	File        string   `json:"file"`
	Loaded      bool     `json:"loaded"`
	InputShape  []int64  `json:"input_shape,omitempty"`
	OutputShape []int64  `json:"output_shape,omitempty"`
	Layout      string   `json:"layout,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

func ToModelDetailResponse(d *domain.ModelDetail) ModelDetailResponse {
	m := ModelDetailDTO{
		ID:     d.ID,
		Task:   string(d.Task),
		File:   filepath.Base(d.Path),
		Loaded: d.Loaded,
	}
	if d.Info != nil {
		m.InputShape = d.Info.InputShape
		m.OutputShape = d.Info.OutputShape
		m.Layout = string(d.Info.Layout)
		m.Labels = d.Info.Labels
	}
	return ModelDetailResponse{Success: true, Model: m}
}
