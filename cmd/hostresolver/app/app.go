// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package app wires the resolver core (cache, registry, driver, host)
// into a runnable command-line demo. Grounded on the cobra/pflag command
// construction style of cmd/dnsman2/app/app.go.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gardener/hostresolver/cache"
	"github.com/gardener/hostresolver/driver"
	"github.com/gardener/hostresolver/host"
	"github.com/gardener/hostresolver/hostkind"
	"github.com/gardener/hostresolver/hosterrors"
	"github.com/gardener/hostresolver/loop"
	"github.com/gardener/hostresolver/registry"
	"github.com/gardener/hostresolver/resolve"
)

// Name is the name of the demo resolver CLI.
const Name = "hostresolver"

// NewCommand returns a new hostresolver command.
func NewCommand() *cobra.Command {
	o := newOptions()
	cmd := &cobra.Command{
		Use:   Name + " --name=HOST [flags]",
		Short: "Resolve a single host name or address through the resolver core",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			log := funcr.New(func(prefix, args string) {
				if prefix != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", prefix, args)
					return
				}
				fmt.Fprintln(cmd.ErrOrStderr(), args)
			}, funcr.Options{Verbosity: o.verbosity})
			return o.run(cmd.Context(), log, cmd.OutOrStdout())
		},
	}

	o.addFlags(cmd.Flags())
	return cmd
}

// options holds the flags bound to the command.
type options struct {
	name        string
	kind        string
	dnsClass    uint16
	dnsType     uint16
	nameservers []string
	timeout     time.Duration
	verbosity   int
	force       bool
}

func newOptions() *options {
	return &options{
		kind:    "addresses",
		timeout: 5 * time.Second,
	}
}

func (o *options) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.name, "name", o.name, "Host name or address to resolve.")
	flags.StringVar(&o.kind, "kind", o.kind, "Query kind: addresses, ipv4, ipv6, names, reachability, dns.")
	flags.Uint16Var(&o.dnsClass, "dns-class", 1, "DNS class for --kind=dns (default IN).")
	flags.Uint16Var(&o.dnsType, "dns-type", 1, "DNS record type for --kind=dns (default A).")
	flags.StringSliceVar(&o.nameservers, "nameserver", nil, "Nameserver to use for --kind=dns (repeatable); defaults to the platform resolver for every other kind.")
	flags.DurationVar(&o.timeout, "timeout", o.timeout, "Overall timeout for the lookup.")
	flags.IntVar(&o.verbosity, "v", o.verbosity, "Log verbosity.")
	flags.BoolVar(&o.force, "force", o.force, "For --kind=addresses, bypass the positive cache and master registry and resolve directly.")
}

// Validate validates the provided command options.
func (o *options) Validate() error {
	if o.name == "" {
		return fmt.Errorf("missing required flag --name")
	}
	switch o.kind {
	case "addresses", "ipv4", "ipv6", "names", "reachability", "dns":
	default:
		return fmt.Errorf("unknown --kind %q", o.kind)
	}
	return nil
}

func (o *options) query() hostkind.Query {
	switch o.kind {
	case "ipv4":
		return hostkind.Of(hostkind.IPv4Addresses)
	case "ipv6":
		return hostkind.Of(hostkind.IPv6Addresses)
	case "names":
		return hostkind.Of(hostkind.Names)
	case "reachability":
		return hostkind.Of(hostkind.Reachability)
	case "dns":
		return hostkind.GenericDNSQuery(o.dnsClass, o.dnsType)
	default:
		return hostkind.Of(hostkind.Addresses)
	}
}

// run builds the resolver core, issues the requested lookup and prints
// the result to out.
func (o *options) run(ctx context.Context, log logr.Logger, out io.Writer) error {
	c := cache.New()
	reg := registry.New(c, log)
	defer reg.Close()

	resolver := resolve.NewStdResolver(nil)
	var dnsResolver resolve.Resolver = resolver
	if len(o.nameservers) > 0 {
		dnsResolver = resolve.NewDNSResolver(resolve.StaticNameservers(o.nameservers), o.timeout, log)
	}

	drv := driver.New(c, reg, resolver, dnsResolver, log)
	defer drv.Close()
	reg.SetDriver(drv)

	query := o.query()

	var h *host.Handle
	var cerr *hosterrors.Error
	if query.Kind == hostkind.Names {
		addr, perr := parseAddress(o.name)
		if perr != nil {
			return perr
		}
		h, cerr = host.CreateWithAddress(addr, drv, log)
	} else {
		h, cerr = host.CreateWithName(o.name, drv, log)
	}
	if cerr != nil {
		return cerr
	}

	runLoop := loop.NewChannelLoop()
	stop := make(chan struct{})
	done := make(chan struct{})
	go runLoop.Run("default", stop)
	defer close(stop)

	host.SetClient(h, func(hh *host.Handle, q hostkind.Query, perr *hosterrors.Error) {
		defer close(done)
		if !hosterrors.IsZero(perr) {
			fmt.Fprintf(out, "error: %s\n", perr.Error())
			return
		}
		v, _ := host.GetInfo(hh, q)
		fmt.Fprintln(out, formatResult(v))
	}, nil)

	host.ScheduleWithRunLoop(h, runLoop, "default")

	ok, startErr := host.StartInfoResolution(h, query, nil, host.StartOption{Forced: o.force})
	if !ok {
		host.UnscheduleFromRunLoop(h, runLoop, "default")
		if startErr != nil {
			return startErr
		}
		return fmt.Errorf("failed to start resolution for %q", o.name)
	}

	select {
	case <-done:
		return nil
	case <-time.After(o.timeout):
		return fmt.Errorf("timed out resolving %q after %s", o.name, o.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parseAddress(s string) ([]byte, *hosterrors.Error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return nil, hosterrors.NotSupported("only dotted-quad IPv4 addresses are accepted for --kind=names")
	}
	addr := make([]byte, 4)
	for i, p := range parts {
		var b int
		if _, err := fmt.Sscanf(p, "%d", &b); err != nil || b < 0 || b > 255 {
			return nil, hosterrors.NotSupported("invalid address octet " + p)
		}
		addr[i] = byte(b)
	}
	return addr, nil
}

func formatResult(v any) string {
	switch val := v.(type) {
	case [][]byte:
		addrs := make([]string, len(val))
		for i, a := range val {
			addrs[i] = formatIP(a)
		}
		return strings.Join(addrs, ", ")
	case []string:
		return strings.Join(val, ", ")
	case []byte:
		if len(val) == 1 && val[0] == 0x01 {
			return "reachable"
		}
		return fmt.Sprintf("%v", val)
	case []resolve.Record:
		records := make([]string, len(val))
		for i, rec := range val {
			records[i] = fmt.Sprintf("class=%d type=%d data=%x", rec.Class, rec.Type, rec.Data)
		}
		return strings.Join(records, "; ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatIP(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%d", v)
	}
	if len(b) == 4 {
		return strings.Join(parts, ".")
	}
	return fmt.Sprintf("%x", b)
}
