//go:build embedded

package profile

// current is the embedded-deployment profile: small fixed budgets, no
// native code generation, no map resize, bounded queues, fail-stop on
// runtime error. See §4.1.
var current = Profile{
	Name: "embedded",

	MaxStackBytes:       8192,
	MaxInstructionCount: 100000,

	NativeCodeGenAllowed: false,
	MapMemorySource:      MapMemoryFixedRegion,
	MapResizeAllowed:     false,

	AttachQueueDepth: 32,

	Failure: FailStop,

	LRUHashEvictionAllowed: false,
}
