// Package calculator is a small locally-executed arithmetic tool, handy as a
// first tool when trying out the tool-calling loop because it needs no API
// keys or network access.
//
// [NewCalculatorTool] returns the tool ready to register with a client or
// catalog; [Calc] is the underlying handler for direct use.
package calculator
