// Package bytecode defines the instruction set emitted by the compiler
// and dispatched by the VM.
package bytecode

// OpCode identifies one bytecode instruction.
type OpCode byte

const (
	LoadConst OpCode = iota
	MakeVar
	Replace
	GetVar

	Add
	Sub
	Mul
	Div
	Mod
	Pow
	BinaryPow

	Lt
	Gt
	Le
	Ge
	Eq
	Neq
	And
	Or

	Inc
	Dec
	Factorial

	Array
	Index

	Print
	Println
	Input

	Len
	ToInt
	ToFloat
	TypeOf

	Function
	FnCall
	Ret

	Jmp
	TernaryStart
	While

	Halt
)

var names = map[OpCode]string{
	LoadConst:    "LoadConst",
	MakeVar:      "MakeVar",
	Replace:      "Replace",
	GetVar:       "GetVar",
	Add:          "Add",
	Sub:          "Sub",
	Mul:          "Mul",
	Div:          "Div",
	Mod:          "Mod",
	Pow:          "Pow",
	BinaryPow:    "BinaryPow",
	Lt:           "Lt",
	Gt:           "Gt",
	Le:           "Le",
	Ge:           "Ge",
	Eq:           "Eq",
	Neq:          "Neq",
	And:          "And",
	Or:           "Or",
	Inc:          "Inc",
	Dec:          "Dec",
	Factorial:    "Factorial",
	Array:        "Array",
	Index:        "Index",
	Print:        "Print",
	Println:      "Println",
	Input:        "Input",
	Len:          "Len",
	ToInt:        "ToInt",
	ToFloat:      "ToFloat",
	TypeOf:       "TypeOf",
	Function:     "Function",
	FnCall:       "FnCall",
	Ret:          "Ret",
	Jmp:          "Jmp",
	TernaryStart: "TernaryStart",
	While:        "While",
	Halt:         "Halt",
}

func (op OpCode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "Unknown"
}
