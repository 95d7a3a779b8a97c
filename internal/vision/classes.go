package vision

// PatternClass identifies one recognized mathematical pattern family.
type PatternClass string

const (
	ClassSpiralFibonacci   PatternClass = "spiral_fibonacci"
	ClassGoldenRatio       PatternClass = "golden_ratio"
	ClassFibonacciSequence PatternClass = "fibonacci_sequence"
	ClassPhiGrid           PatternClass = "phi_grid"
	ClassSunflowerSpiral   PatternClass = "sunflower_spiral"
	ClassPineconeSpiral    PatternClass = "pinecone_spiral"
	ClassShellSpiral       PatternClass = "shell_spiral"
	ClassNautilusSpiral    PatternClass = "nautilus_spiral"
	ClassLeafArrangement   PatternClass = "leaf_arrangement"
)

// ClassInfo is the static catalog entry for a pattern class: scoring knobs
// plus the descriptive text served by the API.
type ClassInfo struct {
	DisplayName string `json:"display_name"`
	// Weight scales the raw geometric score into a confidence.
	Weight float64 `json:"weight"`
	// DefaultThreshold is the minimum confidence to emit a detection of
	// this class, overridable per class in TuningConfig.
	DefaultThreshold float64 `json:"default_threshold"`

	Description string   `json:"description"`
	Explanation string   `json:"explanation"`
	Examples    []string `json:"examples"`
	FunFacts    []string `json:"fun_facts"`
}

// classOrder fixes the enumeration order for AllClasses and API listings.
var classOrder = []PatternClass{
	ClassSpiralFibonacci,
	ClassGoldenRatio,
	ClassFibonacciSequence,
	ClassPhiGrid,
	ClassSunflowerSpiral,
	ClassPineconeSpiral,
	ClassShellSpiral,
	ClassNautilusSpiral,
	ClassLeafArrangement,
}

var classCatalog = map[PatternClass]ClassInfo{
	ClassSpiralFibonacci: {
		DisplayName:      "Fibonacci Spiral",
		Weight:           1.0,
		DefaultThreshold: 0.5,
		Description:      "A logarithmic spiral whose radius grows by the golden ratio with every quarter turn.",
		Explanation: "Tiling squares whose sides follow the Fibonacci sequence and tracing a quarter circle " +
			"through each square approximates a logarithmic spiral with growth factor phi per 90 degrees. " +
			"The recognizer fits log(radius) against winding angle and checks the slope against ln(phi).",
		Examples: []string{
			"a curled fern frond unrolling",
			"the arm of a spiral galaxy in a poster",
			"a cinnamon roll seen from above",
		},
		FunFacts: []string{
			"The ratio of consecutive Fibonacci numbers converges to phi, about 1.6180339887.",
			"A golden spiral widens by a factor of phi for every quarter turn it makes.",
		},
	},
	ClassGoldenRatio: {
		DisplayName:      "Golden Ratio",
		Weight:           1.0,
		DefaultThreshold: 0.6,
		Description:      "A rectangle whose side ratio is close to phi, the golden ratio.",
		Explanation: "A golden rectangle has the property that removing the largest possible square leaves a " +
			"smaller rectangle of the same proportions. The recognizer compares the bounding box aspect " +
			"ratio against phi, accepting either orientation.",
		Examples: []string{
			"a book cover or postcard with classical proportions",
			"a window pane in a Georgian facade",
			"a credit card held up to the camera",
		},
		FunFacts: []string{
			"Phi is the only positive number whose reciprocal is itself minus one.",
			"The golden ratio appears in the diagonals of a regular pentagon.",
		},
	},
	ClassFibonacciSequence: {
		DisplayName:      "Fibonacci Sequence",
		Weight:           1.0,
		DefaultThreshold: 0.5,
		Description:      "A run of integers where each term is the sum of the previous two.",
		Explanation: "Starting from two seed values, every later Fibonacci term is the sum of its two " +
			"predecessors. The recognizer reads digit groups from the scene and scores how many adjacent " +
			"triples satisfy the recurrence.",
		Examples: []string{
			"house numbers 1, 1, 2, 3, 5 along a street",
			"a whiteboard with the sequence written out",
			"stacked boxes counted 2, 3, 5, 8",
		},
		FunFacts: []string{
			"Fibonacci introduced the sequence to Europe in 1202 while modelling rabbit populations.",
			"Every positive integer is a sum of non-consecutive Fibonacci numbers, a result known as Zeckendorf's theorem.",
		},
	},
	ClassPhiGrid: {
		DisplayName:      "Phi Grid",
		Weight:           1.0,
		DefaultThreshold: 0.6,
		Description:      "A rectangular subdivision whose cells meet at golden-ratio proportions.",
		Explanation: "Dividing a frame at 1/phi of its width and height, rather than at thirds, yields the " +
			"phi grid used in photographic composition. The recognizer checks a set of rectangles for " +
			"division lines near the golden section of the enclosing box.",
		Examples: []string{
			"a photography composition overlay",
			"a mondrian-style panel layout",
			"architectural elevation drawings",
		},
		FunFacts: []string{
			"The phi grid places its lines at about 38.2% and 61.8% of the frame, tighter than the rule of thirds.",
			"Le Corbusier's Modulor system scaled architecture around the golden section.",
		},
	},
	ClassSunflowerSpiral: {
		DisplayName:      "Sunflower Spiral",
		Weight:           1.0,
		DefaultThreshold: 0.55,
		Description:      "A seed-head packing where successive florets step by the golden angle.",
		Explanation: "Sunflower florets grow one at a time, each rotated about 137.5 degrees from the last " +
			"with radius growing as the square root of the index. That divergence angle, the golden angle, " +
			"packs seeds with no radial gaps. The recognizer measures the angle between successive points " +
			"about the head's center.",
		Examples: []string{
			"the face of a sunflower",
			"a daisy or chamomile seed head",
			"decorative dome ceilings with radial coffers",
		},
		FunFacts: []string{
			"The golden angle is 360 degrees divided by phi squared, about 137.508 degrees.",
			"Counting sunflower spirals clockwise and counterclockwise almost always yields consecutive Fibonacci numbers, such as 34 and 55.",
		},
	},
	ClassPineconeSpiral: {
		DisplayName:      "Pinecone Spiral",
		Weight:           1.0,
		DefaultThreshold: 0.55,
		Description:      "Interleaved spiral rows of scales stepping by the golden angle.",
		Explanation: "Pinecone scales form two visible families of spirals, one clockwise and one " +
			"counterclockwise, whose counts are consecutive Fibonacci numbers. The packing arises from the " +
			"same golden-angle divergence as sunflower seeds. The recognizer scores golden-angle steps over " +
			"a coarser, sparser point set than a seed head.",
		Examples: []string{
			"a pinecone on a desk",
			"a pineapple's skin segments",
			"an artichoke viewed from above",
		},
		FunFacts: []string{
			"Most pinecones show 8 spirals one way and 13 the other.",
			"Pineapples commonly show three spiral families: 8, 13 and 21.",
		},
	},
	ClassShellSpiral: {
		DisplayName:      "Shell Spiral",
		Weight:           0.9,
		DefaultThreshold: 0.4,
		Description:      "A generic logarithmic spiral without a confirmed golden growth rate.",
		Explanation: "Many shells, horns and vortices coil as logarithmic spirals whose growth rate varies by " +
			"species and need not equal phi. The recognizer accepts consistent turning with steady radial " +
			"growth when the stricter golden-growth classes do not fit.",
		Examples: []string{
			"a snail shell",
			"a ram's horn",
			"cream stirred into coffee",
		},
		FunFacts: []string{
			"Jacob Bernoulli called the logarithmic spiral 'spira mirabilis' and asked for one on his tombstone; the mason carved an Archimedean spiral instead.",
			"A logarithmic spiral crosses every radial line at the same angle.",
		},
	},
	ClassNautilusSpiral: {
		DisplayName:      "Nautilus Spiral",
		Weight:           1.0,
		DefaultThreshold: 0.7,
		Description:      "A chambered logarithmic spiral with near-geometric chamber growth.",
		Explanation: "The nautilus adds chambers as it grows, each a nearly constant factor larger than the " +
			"last, so the shell keeps its shape at every size. The recognizer segments the outline into " +
			"chambers at radial growth steps and scores the consistency of the chamber ratio and its " +
			"proximity to phi.",
		Examples: []string{
			"a sectioned nautilus shell",
			"a museum cutaway model",
			"jewelry cast from a shell cross-section",
		},
		FunFacts: []string{
			"Measured nautilus shells grow by roughly a factor of 3 per full turn, close to phi per half turn.",
			"A nautilus regulates buoyancy by pumping gas through a tube threading all of its sealed chambers.",
		},
	},
	ClassLeafArrangement: {
		DisplayName:      "Leaf Arrangement",
		Weight:           0.85,
		DefaultThreshold: 0.45,
		Description:      "Leaves or branches spaced around a stem at golden-angle intervals.",
		Explanation: "Plants that place successive leaves about 137.5 degrees apart minimize how much each " +
			"leaf shades the ones below, a pattern botanists call spiral phyllotaxis. The recognizer " +
			"measures divergence angles in a sparse fan of points about the stem.",
		Examples: []string{
			"leaves around an aloe or succulent rosette",
			"branches climbing a young tree trunk",
			"petals of a wild rose",
		},
		FunFacts: []string{
			"Common phyllotactic fractions such as 1/2, 1/3, 2/5 and 3/8 are ratios of Fibonacci numbers.",
			"Leonardo da Vinci sketched spiral leaf arrangements centuries before the mathematics was worked out.",
		},
	},
}

// AllClasses returns every pattern class in stable catalog order.
func AllClasses() []PatternClass {
	out := make([]PatternClass, len(classOrder))
	copy(out, classOrder)
	return out
}

// Info returns the catalog entry for a class.
func Info(c PatternClass) (ClassInfo, bool) {
	info, ok := classCatalog[c]
	return info, ok
}

// Valid reports whether c names a known pattern class.
func (c PatternClass) Valid() bool {
	_, ok := classCatalog[c]
	return ok
}

// DisplayName returns the human-readable name, or the raw class string when
// the class is unknown.
func (c PatternClass) DisplayName() string {
	if info, ok := classCatalog[c]; ok {
		return info.DisplayName
	}
	return string(c)
}
