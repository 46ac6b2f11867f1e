// Package guard forces test mode for packages whose tests must never touch
// live infrastructure. Import it for side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ATRIUM_TEST_MODE") == "" {
			_ = os.Setenv("ATRIUM_TEST_MODE", "1")
		}
	})
}
