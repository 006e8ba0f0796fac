// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package app_test

import (
	"bytes"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/hostresolver/cmd/hostresolver/app"
)

func TestApp(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "app Suite")
}

func run(args ...string) (string, error) {
	cmd := app.NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var _ = Describe("hostresolver command", func() {
	It("rejects a missing --name", func() {
		_, err := run()
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unknown --kind", func() {
		_, err := run("--name=example.test", "--kind=bogus")
		Expect(err).To(HaveOccurred())
	})

	It("synthesises an immediate reachability result for an IP literal", func() {
		out, err := run("--name=127.0.0.1", "--kind=reachability")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("reachable"))
	})

	It("reports a clear error for an unresolvable reverse address", func() {
		_, err := run("--name=not-an-address", "--kind=names")
		Expect(err).To(HaveOccurred())
	})
})
