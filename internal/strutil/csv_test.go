// SPDX-License-Identifier: MIT
package strutil_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/repomon/internal/strutil"
)

var _ = Describe("SplitCSV", func() {
	It("trims items and drops blanks", func() {
		Expect(strutil.SplitCSV(" origin, ,gh,upstream ")).To(Equal([]string{"origin", "gh", "upstream"}))
	})

	It("returns nil for an empty value", func() {
		Expect(strutil.SplitCSV("  ")).To(BeNil())
	})

	It("keeps glob patterns intact", func() {
		Expect(strutil.SplitCSV("**/vendor/**,**/node_modules/**")).To(Equal([]string{"**/vendor/**", "**/node_modules/**"}))
	})
})
