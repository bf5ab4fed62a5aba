package graphstore

// allocation wraps a []uint32 backing buffer together with whatever release
// step (if any) is needed to free it.
type allocation struct {
	slice   []uint32
	release func() error
}

func plainAlloc(n uint64) allocation {
	return allocation{
		slice:   make([]uint32, n),
		release: func() error { return nil },
	}
}
