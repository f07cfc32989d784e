// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/capdl/lib/capdl/image"
	"github.com/bureau-foundation/capdl/lib/capdl/wire"
)

// system is a small aarch64 spec: an untyped carved into an endpoint,
// a notification, a cspace, and a frame filled from a file.
const system = `{
	// cspace holds both IPC objects
	"objects": [
		{"name": "ut", "kind": "untyped", "size_bits": 16},
		{"name": "ep", "kind": "endpoint"},
		{"name": "ntfn", "kind": "notification"},
		{"name": "cspace", "kind": "cnode", "size_bits": 4, "slots": [
			{"slot": 1, "kind": "endpoint", "object": 1, "rights": "RWG", "badge": 5},
			{"slot": 2, "kind": "notification", "object": 2, "rights": "RW"},
		]},
		{"name": "buffer", "kind": "frame", "size_bits": 12, "fill": [
			{"offset": 0, "length": 5, "source": "bytes", "data": "aGVsbG8="},
			{"offset": 16, "length": 100, "source": "file", "path": "payload.bin"},
		]},
	],
	"untyped_covers": [{"parent": 0, "start": 1, "end": 5}],
}
`

type fixture struct {
	directory string
	config    string
	spec      string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	t.Setenv("CAPDL_CONFIG", "")
	directory := t.TempDir()
	f := fixture{
		directory: directory,
		config:    filepath.Join(directory, "capdl.yaml"),
		spec:      filepath.Join(directory, "system.jsonc"),
	}
	configText := "paths:\n  root: " + directory + "\n" +
		"content:\n  file_root: " + directory + "\n  inline_limit: 16\n"
	writeFile(t, f.config, []byte(configText))
	writeFile(t, f.spec, []byte(system))
	writeFile(t, filepath.Join(directory, "payload.bin"), bytes.Repeat([]byte{0xab}, 100))
	return f
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func (f fixture) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append(args[:1:1], append([]string{"--config", f.config}, args[1:]...)...)
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no arguments", nil, 2},
		{"help", []string{"help"}, 0},
		{"unknown command", []string{"frobnicate"}, 2},
		{"unknown flag", []string{"validate", "--frobnicate"}, 2},
		{"command help", []string{"validate", "--help"}, 0},
		{"missing spec", []string{"validate"}, 2},
		{"inspect arity", []string{"inspect", "a", "b"}, 2},
		{"bad arch", []string{"validate", "--arch", "sparc", "x.json"}, 2},
	}
	t.Setenv("CAPDL_CONFIG", "")
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(test.args, &stdout, &stderr); code != test.code {
				t.Errorf("run(%q) = %d, want %d\nstderr: %s", test.args, code, test.code, stderr.String())
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("version exited %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "capdl ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	code, stdout, stderr := f.run(t, "validate", f.spec)
	if code != 0 {
		t.Fatalf("validate exited %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	if want := f.spec + ": ok (json, 5 objects)"; !strings.Contains(stdout, want) {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestValidateReportsEveryBrokenSpec(t *testing.T) {
	f := newFixture(t)
	dangling := filepath.Join(f.directory, "dangling.json")
	writeFile(t, dangling, []byte(`{"objects": [
		{"name": "cspace", "kind": "cnode", "size_bits": 2, "slots": [
			{"slot": 0, "kind": "endpoint", "object": 9}
		]}
	]}`))
	malformed := filepath.Join(f.directory, "malformed.json")
	writeFile(t, malformed, []byte(`{"objects": [`))

	code, stdout, _ := f.run(t, "validate", f.spec, dangling, malformed)
	if code != 1 {
		t.Fatalf("validate exited %d, want 1", code)
	}
	for _, want := range []string{
		f.spec + ": ok",
		dangling + ": invalid",
		"dangling object id",
		malformed + ": invalid",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestValidateTarget(t *testing.T) {
	f := newFixture(t)
	mcsOnly := filepath.Join(f.directory, "reply.json")
	writeFile(t, mcsOnly, []byte(`{"objects": [{"name": "reply", "kind": "reply"}]}`))

	if code, stdout, _ := f.run(t, "validate", mcsOnly); code != 1 {
		t.Errorf("validate of a reply object without MCS exited %d\n%s", code, stdout)
	}
	if code, stdout, _ := f.run(t, "validate", "--structural", mcsOnly); code != 0 {
		t.Errorf("structural validate exited %d\n%s", code, stdout)
	}
	if code, stdout, _ := f.run(t, "validate", "--mcs", mcsOnly); code != 0 {
		t.Errorf("validate --mcs exited %d\n%s", code, stdout)
	}
}

func TestEmbedInspectPlan(t *testing.T) {
	f := newFixture(t)
	output := filepath.Join(f.directory, "system.img")

	code, _, stderr := f.run(t, "embed", "-o", output, f.spec)
	if code != 0 {
		t.Fatalf("embed exited %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stderr, "image written") {
		t.Errorf("embed did not log the written image:\n%s", stderr)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, image.Magic[:]) {
		t.Fatalf("embed output does not start with the image magic")
	}
	entries, err := os.ReadDir(filepath.Join(f.directory, "content"))
	if err != nil || len(entries) == 0 {
		t.Errorf("content store is empty after embed (err %v)", err)
	}

	code, stdout, stderr := f.run(t, "inspect", output)
	if code != 0 {
		t.Fatalf("inspect exited %d\nstderr: %s", code, stderr)
	}
	for _, want := range []string{"image version 1", "objects:  5", `"buffer" frame`, "digest"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("inspect output missing %q:\n%s", want, stdout)
		}
	}

	code, stdout, stderr = f.run(t, "plan", "--simulate", output)
	if code != 0 {
		t.Fatalf("plan --simulate exited %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 9 {
		t.Errorf("plan printed %d steps, want 9:\n%s", len(lines), stdout)
	}
	if !strings.HasPrefix(lines[0], "create #0 ut") {
		t.Errorf("first step = %q, want the untyped created first", lines[0])
	}
	if !strings.Contains(stderr, "simulation complete") {
		t.Errorf("simulation did not complete:\n%s", stderr)
	}
}

func TestEmbedPackedWithoutStore(t *testing.T) {
	f := newFixture(t)
	output := filepath.Join(f.directory, "system.pak")

	code, _, stderr := f.run(t, "embed", "--compression", "zstd", "--omit-names", "--no-store", "-o", output, f.spec)
	if code != 0 {
		t.Fatalf("embed exited %d\nstderr: %s", code, stderr)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if !image.IsPacked(data) {
		t.Fatal("embed --compression zstd did not write a packed image")
	}
	if _, err := os.Stat(filepath.Join(f.directory, "content")); !os.IsNotExist(err) {
		t.Errorf("--no-store created the content store (stat err %v)", err)
	}

	code, stdout, _ := f.run(t, "inspect", "--header", output)
	if code != 0 {
		t.Fatalf("inspect --header exited %d", code)
	}
	if !strings.Contains(stdout, "(packed)") || !strings.Contains(stdout, "names:    false") {
		t.Errorf("inspect --header output:\n%s", stdout)
	}

	if code, _, stderr := f.run(t, "plan", "-q", "--simulate", output); code != 0 {
		t.Errorf("plan of a packed image exited %d\nstderr: %s", code, stderr)
	}
}

func TestEmbedRejects(t *testing.T) {
	f := newFixture(t)
	if code, _, _ := f.run(t, "embed", f.spec); code != 2 {
		t.Errorf("embed without --output exited %d, want 2", code)
	}
	if code, _, _ := f.run(t, "embed", "--compression", "brotli", "-o", "x.img", f.spec); code != 2 {
		t.Errorf("embed with unknown compression exited %d, want 2", code)
	}
	if err := os.Remove(filepath.Join(f.directory, "payload.bin")); err != nil {
		t.Fatal(err)
	}
	if code, _, stderr := f.run(t, "embed", "-o", filepath.Join(f.directory, "out.img"), f.spec); code != 1 {
		t.Errorf("embed with a missing file exited %d, want 1\nstderr: %s", code, stderr)
	}
}

func TestPlanSimulationRequiresResolvedFiles(t *testing.T) {
	f := newFixture(t)
	code, _, stderr := f.run(t, "plan", "--simulate", f.spec)
	if code != 1 {
		t.Fatalf("simulating a spec with file content exited %d, want 1", code)
	}
	if !strings.Contains(stderr, "file content not resolved") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestPlanQuiet(t *testing.T) {
	f := newFixture(t)
	code, stdout, _ := f.run(t, "plan", "-q", f.spec)
	if code != 0 {
		t.Fatalf("plan -q exited %d", code)
	}
	counts := make(map[string]string)
	for line := range strings.Lines(stdout) {
		if fields := strings.Fields(line); len(fields) == 2 {
			counts[fields[0]] = fields[1]
		}
	}
	want := map[string]string{
		"create":                  "5",
		"bind_irq":                "0",
		"assign_asid":             "0",
		"fill":                    "2",
		"install_cap":             "2",
		"configure_sched_context": "0",
		"configure_tcb":           "0",
		"resume":                  "0",
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("plan -q counts mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBootInfo(t *testing.T) {
	directory := t.TempDir()
	fdt := filepath.Join(directory, "board.dtb")
	writeFile(t, fdt, []byte{0xd0, 0x0d, 0xfe, 0xed})

	blocks, err := parseBootInfo([]string{"fdt=" + fdt})
	if err != nil {
		t.Fatalf("parseBootInfo: %v", err)
	}
	if len(blocks) != 1 {
		t.Errorf("parseBootInfo returned %d blocks", len(blocks))
	}

	for _, bad := range [][]string{
		{"fdt"},
		{"acpi=" + fdt},
		{"fdt=" + fdt, "fdt=" + fdt},
	} {
		if _, err := parseBootInfo(bad); err == nil {
			t.Errorf("parseBootInfo(%q) succeeded", bad)
		}
	}
}

func TestConvert(t *testing.T) {
	f := newFixture(t)
	cborPath := filepath.Join(f.directory, "system.cbor")
	if code, _, stderr := f.run(t, "convert", "--format", "cbor", "-o", cborPath, f.spec); code != 0 {
		t.Fatalf("convert to cbor exited %d\nstderr: %s", code, stderr)
	}

	code, stdout, stderr := f.run(t, "convert", cborPath)
	if code != 0 {
		t.Fatalf("convert to json exited %d\nstderr: %s", code, stderr)
	}
	document, err := wire.DecodeJSON([]byte(stdout))
	if err != nil {
		t.Fatalf("convert output is not a spec: %v", err)
	}
	if len(document.Objects) != 5 || document.Objects[4].Fill[1].Path != "payload.bin" {
		t.Errorf("converted document lost content: %+v", document.Objects)
	}

	if code, _, _ := f.run(t, "convert", "--format", "yaml", f.spec); code != 2 {
		t.Errorf("convert to yaml exited %d, want 2", code)
	}
}
