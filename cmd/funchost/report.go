package main

import (
	"time"

	"github.com/ahrav/go-funcreg/internal/domain"
)

// nowForArgs stamps command-line arguments. Tests replace it.
var nowForArgs = time.Now

type pinReport struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Optional bool   `json:"optional,omitempty"`
}

type valueReport struct {
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type report struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"`
	Status  any                    `json:"status"`
	Inputs  []pinReport            `json:"inputs"`
	Outputs []pinReport            `json:"outputs"`
	Result  map[string]valueReport `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func newReport(name, typeName string, status any, info domain.FunctionInfo, out domain.Output, err error) report {
	r := report{
		Name:    name,
		Type:    typeName,
		Status:  status,
		Inputs:  pinsOf(info.Inputs()),
		Outputs: pinsOf(info.Outputs()),
	}
	if err != nil {
		r.Error = err.Error()
		return r
	}

	r.Result = make(map[string]valueReport, out.Len())
	for column, v := range out.Values() {
		r.Result[column] = valueReport{Payload: v.Payload(), Timestamp: v.Timestamp()}
	}
	return r
}

func pinsOf(ps domain.PinSet) []pinReport {
	pins := make([]pinReport, 0, ps.Len())
	for _, p := range ps.Pins() {
		pins = append(pins, pinReport{Name: p.Name, Kind: p.Info.String(), Optional: p.Optional})
	}
	return pins
}
