package gosecant_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMinimize(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Minimize Suite")
}
