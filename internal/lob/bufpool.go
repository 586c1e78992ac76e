package lob

import (
	"github.com/openjp-go/ojp/internal/wire"
	"github.com/openjp-go/ojp/pkg/pool"
)

// blockBufferPool reuses the BlockSize-sized scratch buffer a non-bulk send
// loop reads into, avoiding one allocation per LOB write for the common
// case of many small-to-medium writes sharing a goroutine pool.
var blockBufferPool = pool.NewLitePool(func() []byte {
	return make([]byte, wire.BlockSize)
})
