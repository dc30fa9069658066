package render

// Theme holds colors for graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Call edge colors by invoke kind.
	EdgeStatic    string // invokestatic
	EdgeSpecial   string // invokespecial: constructors, private and super calls
	EdgeVirtual   string // invokevirtual
	EdgeInterface string // invokeinterface
	EdgeDynamic   string // invokedynamic call sites

	// Control flow edge colors.
	EdgeTaken   string // conditional branch taken
	EdgeFall    string // conditional fallthrough
	EdgeHandler string // exception handler
	EdgeDirect  string // unconditional and switch edges

	// Node accents.
	StubFill     string // terminal blocks
	DeadFill     string // unreachable blocks
	ExternalText string // callees outside the input

	// Cluster styling.
	ClusterBorder string // subgraph cluster border
	ClusterLabel  string // subgraph cluster label text
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeStatic:    "#424242", // dark gray
	EdgeSpecial:   "#00695C", // teal
	EdgeVirtual:   "#0B3D91", // NASA blue
	EdgeInterface: "#9E9E9E", // gray
	EdgeDynamic:   "#E65100", // deep orange

	EdgeTaken:   "#0B3D91",
	EdgeFall:    "#FC3D21", // NASA red
	EdgeHandler: "#E65100",
	EdgeDirect:  "#424242",

	StubFill:     "#ECEFF1", // blue-gray 50
	DeadFill:     "#FFEBEE", // red 50
	ExternalText: "#9E9E9E",

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}
