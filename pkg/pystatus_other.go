//go:build !amd64

package pkg

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// bind registers the PyStatus functions with purego's struct return support.
// arm64 returns large structs through x8, which only purego can set up.
func (c *configFuncs) bind(initializeFromConfig, setBytesArgv uintptr) (err error) {
	// purego panics on platforms without struct returns
	defer func() {
		if r := recover(); r != nil {
			*c = configFuncs{}
			err = fmt.Errorf("struct returns not supported: %v", r)
		}
	}()
	purego.RegisterFunc(&c.Py_InitializeFromConfig, initializeFromConfig)
	purego.RegisterFunc(&c.PyConfig_SetBytesArgv, setBytesArgv)
	return nil
}
