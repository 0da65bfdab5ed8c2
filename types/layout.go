package types

import "fmt"

type LayoutKind int

const (
	// ClassLayout is spelled AnyObject
	ClassLayout LayoutKind = iota
	NativeClassLayout
	TrivialLayout
)

// LayoutConstraint is a constraint on the memory representation of a type
type LayoutConstraint struct {
	Kind LayoutKind
}

var (
	AnyObject   = LayoutConstraint{Kind: ClassLayout}
	NativeClass = LayoutConstraint{Kind: NativeClassLayout}
	Trivial     = LayoutConstraint{Kind: TrivialLayout}
)

func (l LayoutConstraint) String() string {
	switch l.Kind {
	case ClassLayout:
		return "AnyObject"
	case NativeClassLayout:
		return "_NativeClass"
	case TrivialLayout:
		return "_Trivial"
	default:
		panic(fmt.Sprintf("invalid layout kind %d", int(l.Kind)))
	}
}

func (l LayoutConstraint) IsClass() bool {
	return l.Kind == ClassLayout || l.Kind == NativeClassLayout
}

// LayoutFromName parses the spelling of a layout constraint
func LayoutFromName(name string) (LayoutConstraint, bool) {
	switch name {
	case "AnyObject":
		return AnyObject, true
	case "_NativeClass":
		return NativeClass, true
	case "_Trivial":
		return Trivial, true
	}
	return LayoutConstraint{}, false
}

// MergeLayouts returns the most specific layout satisfying both a and b.
// ok is false when no type can satisfy both.
func MergeLayouts(a, b LayoutConstraint) (merged LayoutConstraint, ok bool) {
	if a == b {
		return a, true
	}
	if a.IsClass() && b.IsClass() {
		return NativeClass, true
	}
	return LayoutConstraint{}, false
}

// LayoutForClass is the layout implied by having decl as a superclass
func LayoutForClass(decl *NominalDecl) LayoutConstraint {
	if decl.UsesForeignObjectModel() {
		return AnyObject
	}
	return NativeClass
}
