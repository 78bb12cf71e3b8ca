package vdev_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tfs-io/tfs/internal/checksum"
	"github.com/tfs-io/tfs/internal/diskfmt"
	"github.com/tfs-io/tfs/internal/tfserr"
	"github.com/tfs-io/tfs/internal/vdev"
	"github.com/tfs-io/tfs/pkg/fs"
)

func openTempImage(t *testing.T) (fs.File, string) {
	t.Helper()
	fsys := fs.NewReal()
	path := filepath.Join(t.TempDir(), "image.tfs")
	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	return f, path
}

func reopenImage(t *testing.T, path string) fs.File {
	t.Helper()
	fsys := fs.NewReal()
	f, err := fsys.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestFormatOpenWriteReadClose(t *testing.T) {
	f, path := openTempImage(t)
	algo := checksum.SeaHash{}

	if _, err := vdev.Format(f, algo, uint16(checksum.AlgoSeaHash), nil, 16); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f2 := reopenImage(t, path)
	d, err := vdev.Open(f2, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if d.NumberOfSectors() != 16 {
		t.Fatalf("sectors = %d, want 16", d.NumberOfSectors())
	}

	payload := bytes.Repeat([]byte{0xAB}, diskfmt.SectorSize)
	if err := d.Write(3, payload); err != nil {
		t.Fatal(err)
	}
	got, err := d.Read(3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("read back mismatch")
	}

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening after a clean close must not warn or fail, and the header
	// must read back Closed before Open bumps it again.
	f3 := reopenImage(t, path)
	d2, err := vdev.Open(f3, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	got2, err := d2.Read(3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got2, payload) {
		t.Fatal("data did not survive reopen")
	}
	if err := d2.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenRefusesInconsistent(t *testing.T) {
	f, path := openTempImage(t)
	algo := checksum.SeaHash{}
	h, err := vdev.Format(f, algo, uint16(checksum.AlgoSeaHash), nil, 4)
	if err != nil {
		t.Fatal(err)
	}
	h.StateFlag = diskfmt.StateInconsistent
	buf, err := h.Encode(algo)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f2 := reopenImage(t, path)
	defer f2.Close()
	if _, err := vdev.Open(f2, nil, nil); err == nil || !errors.Is(err, tfserr.ErrInconsistent) {
		t.Fatalf("expected ErrInconsistent, got %v", err)
	}
}

func TestMirrorHalvesSectorsAndRoundTrips(t *testing.T) {
	f, path := openTempImage(t)
	algo := checksum.SeaHash{}
	if _, err := vdev.Format(f, algo, uint16(checksum.AlgoSeaHash), []diskfmt.VdevLabel{diskfmt.VdevMirror}, 8); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f2 := reopenImage(t, path)
	d, err := vdev.Open(f2, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if d.NumberOfSectors() != 4 {
		t.Fatalf("mirror should halve sectors: got %d, want 4", d.NumberOfSectors())
	}

	payload := bytes.Repeat([]byte{0x42}, diskfmt.SectorSize)
	if err := d.Write(1, payload); err != nil {
		t.Fatal(err)
	}
	got, err := d.Read(1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("mirror round trip mismatch")
	}
}

func TestSpeckLayerRoundTripsWithPassword(t *testing.T) {
	f, path := openTempImage(t)
	algo := checksum.SeaHash{}
	if _, err := vdev.Format(f, algo, uint16(checksum.AlgoSeaHash), []diskfmt.VdevLabel{diskfmt.VdevSpeck}, 4); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f2 := reopenImage(t, path)
	d, err := vdev.Open(f2, nil, []byte("correct horse battery staple"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	payload := bytes.Repeat([]byte{0x99}, diskfmt.SectorSize)
	if err := d.Write(0, payload); err != nil {
		t.Fatal(err)
	}
	got, err := d.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("speck round trip mismatch")
	}
}

func TestOpenWithoutPasswordFailsWhenSpeckConfigured(t *testing.T) {
	f, path := openTempImage(t)
	algo := checksum.SeaHash{}
	if _, err := vdev.Format(f, algo, uint16(checksum.AlgoSeaHash), []diskfmt.VdevLabel{diskfmt.VdevSpeck}, 4); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f2 := reopenImage(t, path)
	defer f2.Close()
	if _, err := vdev.Open(f2, nil, nil); err == nil {
		t.Fatal("expected an error opening a speck-protected image without a password")
	}
}
