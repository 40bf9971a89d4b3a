package calculator

import (
	"context"

	"github.com/parley-ai/parley/providers/tool"
)

// Input names the two operands and the operation for [Calc]. The jsonschema
// tags drive the parameter schema advertised to the model.
type Input struct {
	A  float64 `json:"A"  jsonschema:"description=First operand,required"`
	B  float64 `json:"B"  jsonschema:"description=Second operand,required"`
	Op string  `json:"Op" jsonschema:"description=Operation type,enum=add,enum=sub,enum=mul,enum=div,required"`
}

// Output carries the single numeric result of a calculation.
type Output struct {
	Result float64 `json:"result" jsonschema:"description=The result of the calculation"`
}

// NewCalculatorTool builds a ready-to-register arithmetic tool with [Calc]
// as its handler. Wrap [Calc] through [tool.NewTool] yourself to pick a
// different name or description.
func NewCalculatorTool() *tool.Tool[Input, Output] {
	return tool.NewTool[Input, Output](
		"Calculator",
		Calc,
		tool.WithDescription("Performs basic arithmetic (addition, subtraction, multiplication, division) on two numbers."),
	)
}

// Calc applies Op to A and B. Each operation has a keyword and a symbol
// form: "add"/"+", "sub"/"-", "mul"/"*", "div"/"/". Division by zero yields
// an infinity per IEEE 754 rather than an error, and an unrecognized Op
// yields zero, so the model always gets a well-formed result back instead
// of a failed tool call.
func Calc(_ context.Context, in Input) (Output, error) {
	var result float64
	switch in.Op {
	case "add", "+":
		result = in.A + in.B
	case "sub", "-":
		result = in.A - in.B
	case "mul", "*":
		result = in.A * in.B
	case "div", "/":
		result = in.A / in.B
	}
	return Output{Result: result}, nil
}
