package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andreyvit/diff"

	"github.com/leftmike/sortkv/kv"
	"github.com/leftmike/sortkv/store"
	"github.com/leftmike/sortkv/testutil"
)

func runSortkv(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	rangeStart = ""
	rangeEnd = ""
	storeName = "default"

	var out bytes.Buffer
	sortkvCmd.SetOut(&out)
	sortkvCmd.SetErr(io.Discard)
	sortkvCmd.SetArgs(append([]string{"--no-config", "--backend", "bbolt", "--data", dataDir,
		"--log-file", filepath.Join(dataDir, "sortkv.log")}, args...))
	err := sortkvCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dataDir := t.TempDir()

	cases := []struct {
		fln  testutil.FileLineNumber
		args []string
		out  string
		fail bool
	}{
		{fln: fln(), args: []string{"count"}, out: "0\n"},
		{fln: fln(), args: []string{"put", "banana", "yellow"}},
		{fln: fln(), args: []string{"put", "3.5", "three and a half"}},
		{fln: fln(), args: []string{"put", "--", "-5", "#00ff"}},
		{fln: fln(), args: []string{"put", "apple", `"red"`}},
		{fln: fln(), args: []string{"put", "0", "zero"}},
		{fln: fln(), args: []string{"put", "[1, x]", "tuple"}},
		{fln: fln(), args: []string{"get", "apple"}, out: "red\n"},
		{fln: fln(), args: []string{"get", "--", "-5"}, out: "#00ff\n"},
		{fln: fln(), args: []string{"get", "pear"}, fail: true},
		{fln: fln(), args: []string{"get", "[1,"}, fail: true},
		{fln: fln(), args: []string{"has", "banana"}, out: "true\n"},
		{fln: fln(), args: []string{"has", "3"}, out: "false\n"},
		{fln: fln(), args: []string{"count"}, out: "6\n"},
		{fln: fln(), args: []string{"del", "banana", "pear", "0"}},
		{fln: fln(), args: []string{"count"}, out: "4\n"},
		{fln: fln(), args: []string{"put", "hash", `"#00ff"`}},
		{fln: fln(), args: []string{"get", "hash"}, out: "\"#00ff\"\n"},
		{fln: fln(), args: []string{"put", "quote", `"\"x\""`}},
		{fln: fln(), args: []string{"get", "quote"}, out: "\"\\\"x\\\"\"\n"},
		{fln: fln(), args: []string{"del", "hash", "quote"}},
		{fln: fln(), args: []string{"encode", "1", "apple"},
			out: "8dbff0000000000000800001\n966170706c6500\n"},
		{fln: fln(), args: []string{"decode", "966170706c6500"}, out: "\"apple\"\n"},
		{fln: fln(), args: []string{"decode", "96"}, fail: true},
		{fln: fln(), args: []string{"clear"}},
		{fln: fln(), args: []string{"count"}, out: "0\n"},
		{fln: fln(), args: []string{"version"},
			out: version + "\nbackends: [badger bbolt btree leveldb pebble]\n"},
	}

	for _, c := range cases {
		out, err := runSortkv(t, dataDir, c.args...)
		if c.fail {
			if err == nil {
				t.Errorf("%s%s did not fail", c.fln, strings.Join(c.args, " "))
			}
		} else if err != nil {
			t.Errorf("%s%s failed with %s", c.fln, strings.Join(c.args, " "), err)
		} else if out != c.out {
			t.Errorf("%s%s got\n%s", c.fln, strings.Join(c.args, " "), diff.LineDiff(c.out, out))
		}
	}
}

func fln() testutil.FileLineNumber {
	return testutil.MakeFileLineNumber()
}

func TestRange(t *testing.T) {
	dataDir := t.TempDir()

	for _, args := range [][]string{
		{"put", "b", "bbb"},
		{"put", "10", "ten"},
		{"put", "a", "aaa"},
	} {
		_, err := runSortkv(t, dataDir, args...)
		if err != nil {
			t.Fatalf("%s failed with %s", strings.Join(args, " "), err)
		}
	}

	out, err := runSortkv(t, dataDir, "range", "--start", "10")
	if err != nil {
		t.Fatalf("range failed with %s", err)
	}
	want := `+-----+-------+
| key | value |
+-----+-------+
|  10 | ten   |
| "a" | aaa   |
| "b" | bbb   |
+-----+-------+
(3 records)
`
	if out != want {
		t.Errorf("range got\n%s", diff.LineDiff(want, out))
	}
}

func TestBatchFile(t *testing.T) {
	dataDir := t.TempDir()

	fn := filepath.Join(dataDir, "ops.txt")
	err := os.WriteFile(fn, []byte(`# fruit
put apple red
put [1, "a b"] "two words"
put @2024-01-02T03:04:05Z #0102

put pear green
del pear
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	out, err := runSortkv(t, dataDir, "batch", fn)
	if err != nil {
		t.Fatalf("batch failed with %s", err)
	}
	if out != "5 operations applied\n" {
		t.Errorf("batch got %q", out)
	}
	out, err = runSortkv(t, dataDir, "count")
	if err != nil {
		t.Fatalf("count failed with %s", err)
	} else if out != "3\n" {
		t.Errorf("count got %q want 3", out)
	}

	bad := filepath.Join(dataDir, "bad.txt")
	err = os.WriteFile(bad, []byte("put melon orange\nupdate apple blue\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, err = runSortkv(t, dataDir, "batch", bad)
	if err == nil {
		t.Errorf("batch %s did not fail", bad)
	}
	out, err = runSortkv(t, dataDir, "has", "melon")
	if err != nil {
		t.Fatalf("has failed with %s", err)
	} else if out != "false\n" {
		t.Errorf("has melon got %q want false", out)
	}
}

func TestDumpLoad(t *testing.T) {
	dataDir := t.TempDir()

	for _, args := range [][]string{
		{"put", "--", "-5", "minus five"},
		{"put", "NaN", ""},
		{"put", "apple", "#00"},
		{"put", "[1, [2.5, #ff]]", "nested"},
	} {
		_, err := runSortkv(t, dataDir, args...)
		if err != nil {
			t.Fatalf("%s failed with %s", strings.Join(args, " "), err)
		}
	}

	dump := filepath.Join(dataDir, "default.cbor")
	_, err := runSortkv(t, dataDir, "dump", dump)
	if err != nil {
		t.Fatalf("dump failed with %s", err)
	}
	want, err := runSortkv(t, dataDir, "range")
	if err != nil {
		t.Fatalf("range failed with %s", err)
	}

	_, err = runSortkv(t, dataDir, "drop")
	if err != nil {
		t.Fatalf("drop failed with %s", err)
	}
	out, err := runSortkv(t, dataDir, "count")
	if err != nil {
		t.Fatalf("count failed with %s", err)
	} else if out != "0\n" {
		t.Errorf("count after drop got %q want 0", out)
	}

	_, err = runSortkv(t, dataDir, "--batch-size", "3", "load", dump, dump)
	if err != nil {
		t.Fatalf("load failed with %s", err)
	}
	out, err = runSortkv(t, dataDir, "range")
	if err != nil {
		t.Fatalf("range failed with %s", err)
	} else if out != want {
		t.Errorf("range after load got\n%s", diff.LineDiff(want, out))
	}
}

func TestConsole(t *testing.T) {
	be, err := kv.NewBackend("btree", kv.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer be.Close()

	st, err := store.Open(be, "console")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	cases := []struct {
		fln  testutil.FileLineNumber
		line string
		out  string
		fail bool
	}{
		{fln: fln(), line: "put apple red"},
		{fln: fln(), line: `  put "b c" "d e"`},
		{fln: fln(), line: "put 7 #07"},
		{fln: fln(), line: "get apple", out: "red\n"},
		{fln: fln(), line: `get "b c"`, out: "d e\n"},
		{fln: fln(), line: "get 7", out: "#07\n"},
		{fln: fln(), line: "has 8", out: "false\n"},
		{fln: fln(), line: "count", out: "3\n"},
		{fln: fln(), line: "range 7 7",
			out: `+-----+-------+
| key | value |
+-----+-------+
|   7 | #07   |
+-----+-------+
(1 records)
`},
		{fln: fln(), line: "range 1 2 3", fail: true},
		{fln: fln(), line: "encode 7", out: "8dc01c000000000000800001\n"},
		{fln: fln(), line: "decode 966100", out: "\"a\"\n"},
		{fln: fln(), line: "del apple 7", out: ""},
		{fln: fln(), line: "del", fail: true},
		{fln: fln(), line: "count", out: "1\n"},
		{fln: fln(), line: "clear"},
		{fln: fln(), line: "count", out: "0\n"},
		{fln: fln(), line: "put x", fail: true},
		{fln: fln(), line: "get", fail: true},
		{fln: fln(), line: "select *", fail: true},
	}

	for _, c := range cases {
		var b bytes.Buffer
		err := execLine(ctx, st, &b, c.line)
		if c.fail {
			if err == nil {
				t.Errorf("%sexecLine(%q) did not fail", c.fln, c.line)
			}
		} else if err != nil {
			t.Errorf("%sexecLine(%q) failed with %s", c.fln, c.line, err)
		} else if b.String() != c.out {
			t.Errorf("%sexecLine(%q) got\n%s", c.fln, c.line, diff.LineDiff(c.out, b.String()))
		}
	}

	if execLine(ctx, st, io.Discard, "quit") != errQuit {
		t.Errorf("execLine(quit) did not quit")
	}
}

func TestConfigFile(t *testing.T) {
	dataDir := t.TempDir()

	cfgFile := filepath.Join(dataDir, "sortkv.hcl")
	err := os.WriteFile(cfgFile, []byte(`store = "fromconfig"
batch-size = 10
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	runConfig := func(args ...string) (string, error) {
		var out bytes.Buffer
		sortkvCmd.SetOut(&out)
		sortkvCmd.SetErr(io.Discard)
		sortkvCmd.SetArgs(append([]string{"--no-config=false", "--config-file", cfgFile,
			"--backend", "bbolt", "--data", dataDir,
			"--log-file", filepath.Join(dataDir, "sortkv.log")}, args...))
		err := sortkvCmd.Execute()
		return out.String(), err
	}

	storeName = "default"
	_, err = runConfig("put", "apple", "red")
	if err != nil {
		t.Fatalf("put failed with %s", err)
	}
	if storeName != "fromconfig" {
		t.Errorf("store got %s want fromconfig", storeName)
	}

	out, err := runSortkv(t, dataDir, "has", "apple")
	if err != nil {
		t.Fatalf("has failed with %s", err)
	} else if out != "false\n" {
		t.Errorf("has apple in default store got %q want false", out)
	}

	out, err = runConfig("get", "apple")
	if err != nil {
		t.Fatalf("get failed with %s", err)
	} else if out != "red\n" {
		t.Errorf("get apple got %q want red", out)
	}

	err = os.WriteFile(cfgFile, []byte("color = \"blue\"\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, err = runConfig("count")
	if err == nil {
		t.Errorf("count with unknown config variable did not fail")
	}
}
