package memory

import (
	"testing"

	"github.com/mcdev12/ludotime/go/internal/store"
	"github.com/mcdev12/ludotime/go/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
