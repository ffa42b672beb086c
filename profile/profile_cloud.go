//go:build cloud

package profile

// current is the cloud-deployment profile: large budgets, native code
// generation and map resize permitted, large queues, restartable on
// runtime error. See §4.1.
var current = Profile{
	Name: "cloud",

	MaxStackBytes:       524288,
	MaxInstructionCount: 1000000,

	NativeCodeGenAllowed: true,
	MapMemorySource:      MapMemoryHeap,
	MapResizeAllowed:     true,

	AttachQueueDepth: 1024,

	Failure: FailRestartable,

	LRUHashEvictionAllowed: true,
}
