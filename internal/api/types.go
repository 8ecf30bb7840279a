package api

import (
	"github.com/samcharles93/blast/internal/tuning"
)

// VectorData is a strided view over data. Inc defaults to 1.
type VectorData struct {
	Data   []float64 `json:"data"`
	Offset int       `json:"offset,omitempty"`
	Inc    int       `json:"inc,omitempty"`
}

type MatrixData struct {
	Data   []float64 `json:"data"`
	Offset int       `json:"offset,omitempty"`
	LD     int       `json:"ld"`
}

// RoutineRequest carries the operands of one routine call. Fields a routine
// does not read are ignored.
type RoutineRequest struct {
	Precision string      `json:"precision,omitempty"`
	N         int         `json:"n"`
	M         int         `json:"m,omitempty"`
	Alpha     float64     `json:"alpha,omitempty"`
	Beta      float64     `json:"beta,omitempty"`
	Layout    string      `json:"layout,omitempty"`
	Trans     string      `json:"trans,omitempty"`
	X         *VectorData `json:"x,omitempty"`
	Y         *VectorData `json:"y,omitempty"`
	A         *MatrixData `json:"a,omitempty"`
}

type Launch struct {
	Kernel  string `json:"kernel"`
	Variant string `json:"variant"`
	Global  []int  `json:"global"`
	Local   []int  `json:"local"`
}

// RoutineRun is the stored outcome of a routine call. X and Y hold the
// operand buffers after the call; Result holds a DOT output.
type RoutineRun struct {
	ID        string    `json:"id"`
	Object    string    `json:"object"`
	CreatedAt int64     `json:"created_at"`
	Routine   string    `json:"routine"`
	Precision string    `json:"precision"`
	Status    string    `json:"status"`
	Code      int       `json:"code"`
	X         []float64 `json:"x,omitempty"`
	Y         []float64 `json:"y,omitempty"`
	Result    *float64  `json:"result,omitempty"`
	Launches  []Launch  `json:"launches,omitempty"`
}

type RoutineInfo struct {
	Name       string   `json:"name"`
	Kernels    []string `json:"kernels"`
	Tuning     []string `json:"tuning"`
	Precisions []string `json:"precisions"`
}

type RoutineList struct {
	Object string        `json:"object"`
	Data   []RoutineInfo `json:"data"`
}

type TuningResponse struct {
	Family    string        `json:"family"`
	Precision string        `json:"precision"`
	Device    string        `json:"device"`
	Params    tuning.Params `json:"params"`
}

type DeleteRunResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
