package sys

import (
	"strings"

	"github.com/chazu/svm/vm"
)

// testDoMain is Test.doMain(filter). It runs every entry of the image's
// test table whose qualified slot name contains filter (all of them for
// null or ""), and returns the number of failed asserts. It returns -1
// when the image has no tests.
func testDoMain(v *vm.VM, p []vm.Cell) vm.Cell {
	mem := v.Memory()
	var filter string
	if a := p[0].Addr(); a != 0 {
		filter = mem.CString(a)
	}
	if filter == "" {
		log.Info("-- running all svm tests")
	} else {
		log.Infof("-- running svm test: %s", filter)
	}

	bix := v.Header().Tests
	if bix == 0 {
		return vm.NegOneCell
	}
	table := v.BlockAddr(bix)
	n := int(mem.Uint16(table))
	if n == 0 {
		return vm.NegOneCell
	}
	for i := 0; i < n; i++ {
		entry := table + 2 + vm.Addr(i)*4
		qname := v.QnameSlot(mem.Uint16(entry))
		if filter != "" && !strings.Contains(qname, filter) {
			continue
		}
		before := v.AssertSuccesses()
		if _, err := v.Call(mem.Uint16(entry+2), nil); err != nil {
			log.Errorf("-- svm test %s: %v", qname, err)
			continue
		}
		log.Infof("-- svm test %s [%d verifies]", qname, v.AssertSuccesses()-before)
	}
	return vm.IntCell(int32(v.AssertFailures()))
}
