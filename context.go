package fsm

// MinimizeLevel controls when minimization runs during construction.
type MinimizeLevel int

const (
	// MinimizeNone never minimizes.
	MinimizeNone MinimizeLevel = iota
	// MinimizeEnd minimizes only when the caller finalizes the machine.
	MinimizeEnd
	// MinimizeMost minimizes after the operators that tend to blow up.
	MinimizeMost
	// MinimizeEvery minimizes after every operator.
	MinimizeEvery
)

// MinimizeOpt selects the minimization strategy.
type MinimizeOpt int

const (
	// MinimizeApprox fuses states with identical out structures until a
	// fixed point. No extra space.
	MinimizeApprox MinimizeOpt = iota
	// MinimizeStable uses the pairwise mark table. Correct and stable,
	// quadratic space.
	MinimizeStable
	// MinimizePartition1 is plain partition refinement.
	MinimizePartition1
	// MinimizePartition2 is partition refinement with a split worklist.
	MinimizePartition2
)

// condCostThreshold bounds how many times a cost-marked action may be
// duplicated into merged transitions before the merge is refused.
const condCostThreshold = 16

// Ctx carries the process-scoped immutable settings shared by every machine
// built from it. Two machines may be combined only when they hold the same
// context.
type Ctx struct {
	keyOps   *KeyOps
	condData *condData

	minimizeLevel MinimizeLevel
	minimizeOpt   MinimizeOpt

	// stateLimit caps the total live state count; <= 0 means no limit.
	stateLimit int

	printStatistics bool
	nfaTermCheck    bool

	logger Logger

	// nextStateID hands out context-unique state identifiers, used for
	// canonical state-set keys during subset construction.
	nextStateID int
	numStates   int
}

// Options configures a context.
type Options struct {
	MinimizeLevel   MinimizeLevel
	MinimizeOpt     MinimizeOpt
	StateLimit      int
	NfaTermCheck    bool
	PrintStatistics bool
	Logger          Logger
}

// DefaultOptions returns the options used when none are provided.
func DefaultOptions() Options {
	return Options{
		MinimizeLevel: MinimizeMost,
		MinimizeOpt:   MinimizePartition2,
	}
}

// NewCtx creates a context over the given alphabet.
func NewCtx(keyOps *KeyOps, opts ...Options) *Ctx {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	logger := opt.Logger
	if logger == nil {
		logger = newNoopLogger()
	}
	return &Ctx{
		keyOps:          keyOps,
		condData:        newCondData(),
		minimizeLevel:   opt.MinimizeLevel,
		minimizeOpt:     opt.MinimizeOpt,
		stateLimit:      opt.StateLimit,
		printStatistics: opt.PrintStatistics,
		nfaTermCheck:    opt.NfaTermCheck,
		logger:          logger,
	}
}

// KeyOps exposes the alphabet configuration.
func (c *Ctx) KeyOps() *KeyOps { return c.keyOps }

// AddCondSpace interns the condition space for the guard set.
func (c *Ctx) AddCondSpace(set CondSet) *CondSpace {
	return c.condData.addCondSpace(set)
}

func (c *Ctx) stats(format string, args ...any) {
	if c.printStatistics {
		c.logger.Debugf(format, args...)
	}
}

// sameCtx panics when two machines from different contexts are combined,
// which is a programmer bug.
func sameCtx(a, b *Fsm) {
	if a.ctx != b.ctx {
		structuralf("machines from different contexts combined")
	}
}
