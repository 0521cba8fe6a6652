package dataset

// Option is one selectable category of a feature column.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Options lists the human-readable categories of each feature column, in display order.
var Options = map[string][]Option{
	"cap-shape": {
		{Label: "Bell", Value: "b"},
		{Label: "Conical", Value: "c"},
		{Label: "Convex", Value: "x"},
		{Label: "Flat", Value: "f"},
		{Label: "Knobbed", Value: "k"},
		{Label: "Sunken", Value: "s"},
	},
	"cap-surface": {
		{Label: "Fibrous", Value: "f"},
		{Label: "Grooves", Value: "g"},
		{Label: "Scaly", Value: "y"},
		{Label: "Smooth", Value: "s"},
	},
	"cap-color": {
		{Label: "Brown", Value: "n"},
		{Label: "Buff", Value: "b"},
		{Label: "Cinnamon", Value: "c"},
		{Label: "Gray", Value: "g"},
		{Label: "Green", Value: "r"},
		{Label: "Pink", Value: "p"},
		{Label: "Purple", Value: "u"},
		{Label: "Red", Value: "e"},
		{Label: "White", Value: "w"},
		{Label: "Yellow", Value: "y"},
	},
	"bruises": {
		{Label: "Bruises", Value: "t"},
		{Label: "No", Value: "f"},
	},
	"odor": {
		{Label: "Almond", Value: "a"},
		{Label: "Anise", Value: "l"},
		{Label: "Creosote", Value: "c"},
		{Label: "Fishy", Value: "y"},
		{Label: "Foul", Value: "f"},
		{Label: "Musty", Value: "m"},
		{Label: "None", Value: "n"},
		{Label: "Pungent", Value: "p"},
		{Label: "Spicy", Value: "s"},
	},
	"gill-attachment": {
		{Label: "Attached", Value: "a"},
		{Label: "Descending", Value: "d"},
		{Label: "Free", Value: "f"},
		{Label: "Notched", Value: "n"},
	},
	"gill-spacing": {
		{Label: "Close", Value: "c"},
		{Label: "Crowded", Value: "w"},
		{Label: "Distant", Value: "d"},
	},
	"gill-size": {
		{Label: "Broad", Value: "b"},
		{Label: "Narrow", Value: "n"},
	},
	"gill-color": {
		{Label: "Black", Value: "k"},
		{Label: "Brown", Value: "n"},
		{Label: "Buff", Value: "b"},
		{Label: "Chocolate", Value: "h"},
		{Label: "Gray", Value: "g"},
		{Label: "Green", Value: "r"},
		{Label: "Orange", Value: "o"},
		{Label: "Pink", Value: "p"},
		{Label: "Purple", Value: "u"},
		{Label: "Red", Value: "e"},
		{Label: "White", Value: "w"},
		{Label: "Yellow", Value: "y"},
	},
	"stalk-shape": {
		{Label: "Enlarging", Value: "e"},
		{Label: "Tapering", Value: "t"},
	},
	"stalk-root": {
		{Label: "Bulbous", Value: "b"},
		{Label: "Club", Value: "c"},
		{Label: "Cup", Value: "u"},
		{Label: "Equal", Value: "e"},
		{Label: "Rhizomorphs", Value: "z"},
		{Label: "Rooted", Value: "r"},
		{Label: "Missing", Value: "?"},
	},
	"stalk-surface-above-ring": {
		{Label: "Fibrous", Value: "f"},
		{Label: "Scaly", Value: "y"},
		{Label: "Silky", Value: "k"},
		{Label: "Smooth", Value: "s"},
	},
	"stalk-surface-below-ring": {
		{Label: "Fibrous", Value: "f"},
		{Label: "Scaly", Value: "y"},
		{Label: "Silky", Value: "k"},
		{Label: "Smooth", Value: "s"},
	},
	"stalk-color-above-ring": {
		{Label: "Brown", Value: "n"},
		{Label: "Buff", Value: "b"},
		{Label: "Cinnamon", Value: "c"},
		{Label: "Gray", Value: "g"},
		{Label: "Orange", Value: "o"},
		{Label: "Pink", Value: "p"},
		{Label: "Red", Value: "e"},
		{Label: "White", Value: "w"},
		{Label: "Yellow", Value: "y"},
	},
	"stalk-color-below-ring": {
		{Label: "Brown", Value: "n"},
		{Label: "Buff", Value: "b"},
		{Label: "Cinnamon", Value: "c"},
		{Label: "Gray", Value: "g"},
		{Label: "Orange", Value: "o"},
		{Label: "Pink", Value: "p"},
		{Label: "Red", Value: "e"},
		{Label: "White", Value: "w"},
		{Label: "Yellow", Value: "y"},
	},
	"veil-type": {
		{Label: "Partial", Value: "p"},
		{Label: "Universal", Value: "u"},
	},
	"veil-color": {
		{Label: "Brown", Value: "n"},
		{Label: "Orange", Value: "o"},
		{Label: "White", Value: "w"},
		{Label: "Yellow", Value: "y"},
	},
	"ring-number": {
		{Label: "None", Value: "n"},
		{Label: "One", Value: "o"},
		{Label: "Two", Value: "t"},
	},
	"ring-type": {
		{Label: "Cobwebby", Value: "c"},
		{Label: "Evanescent", Value: "e"},
		{Label: "Flaring", Value: "f"},
		{Label: "Large", Value: "l"},
		{Label: "None", Value: "n"},
		{Label: "Pendant", Value: "p"},
		{Label: "Sheathing", Value: "s"},
		{Label: "Zone", Value: "z"},
	},
	"spore-print-color": {
		{Label: "Black", Value: "k"},
		{Label: "Brown", Value: "n"},
		{Label: "Buff", Value: "b"},
		{Label: "Chocolate", Value: "h"},
		{Label: "Green", Value: "r"},
		{Label: "Orange", Value: "o"},
		{Label: "Purple", Value: "u"},
		{Label: "White", Value: "w"},
		{Label: "Yellow", Value: "y"},
	},
	"population": {
		{Label: "Abundant", Value: "a"},
		{Label: "Clustered", Value: "c"},
		{Label: "Numerous", Value: "n"},
		{Label: "Scattered", Value: "s"},
		{Label: "Several", Value: "v"},
		{Label: "Solitary", Value: "y"},
	},
	"habitat": {
		{Label: "Grasses", Value: "g"},
		{Label: "Leaves", Value: "l"},
		{Label: "Meadows", Value: "m"},
		{Label: "Paths", Value: "p"},
		{Label: "Urban", Value: "u"},
		{Label: "Waste", Value: "w"},
		{Label: "Woods", Value: "d"},
	},
}
