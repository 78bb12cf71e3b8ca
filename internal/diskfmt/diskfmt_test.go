package diskfmt_test

import (
	"testing"

	"github.com/tfs-io/tfs/internal/checksum"
	"github.com/tfs-io/tfs/internal/diskfmt"
)

func TestHeaderRoundTrip(t *testing.T) {
	algo := checksum.SeaHash{}
	h := diskfmt.NewHeader(1, []diskfmt.VdevLabel{diskfmt.VdevMirror, diskfmt.VdevSpeck})
	h.StateFlag = diskfmt.StateOpen

	buf, err := h.Encode(algo)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != diskfmt.SectorSize {
		t.Fatalf("encoded header has wrong size %d", len(buf))
	}

	got, err := diskfmt.DecodeHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.VersionMajor != h.VersionMajor || got.VersionMinor != h.VersionMinor {
		t.Fatalf("version mismatch: %+v vs %+v", got, h)
	}
	if got.UID != h.UID {
		t.Fatal("uid mismatch")
	}
	if got.StateFlag != diskfmt.StateOpen {
		t.Fatalf("state flag = %v, want Open", got.StateFlag)
	}
	if len(got.VdevStack) != 2 || got.VdevStack[0] != diskfmt.VdevMirror || got.VdevStack[1] != diskfmt.VdevSpeck {
		t.Fatalf("vdev stack mismatch: %+v", got.VdevStack)
	}
}

func TestHeaderChecksumMismatchIsCorruption(t *testing.T) {
	algo := checksum.SeaHash{}
	h := diskfmt.NewHeader(1, nil)
	buf, err := h.Encode(algo)
	if err != nil {
		t.Fatal(err)
	}
	buf[100] ^= 0xFF

	if _, err := diskfmt.DecodeHeader(buf); err == nil {
		t.Fatal("expected corruption error")
	}
}

func TestHeaderMagicExactBytes(t *testing.T) {
	algo := checksum.SeaHash{}
	h := diskfmt.NewHeader(1, nil)
	buf, err := h.Encode(algo)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[0:8]) != "TFS fmt " {
		t.Fatalf("magic = %q", buf[0:8])
	}
}

func TestStateRoundTrip(t *testing.T) {
	algo := checksum.SeaHash{}
	offset := uint32(3)
	s := diskfmt.State{
		Compression: diskfmt.CompressionLZ4,
		Superpage:   diskfmt.PagePointer{Cluster: 42, Offset: &offset, Checksum: 0xCAFEBABE},
		FreelistHead: diskfmt.FreelistHead{
			Cluster:  7,
			Checksum: 0x1122334455667788,
		},
	}
	buf := s.Encode(algo)
	got, err := diskfmt.DecodeState(buf, algo)
	if err != nil {
		t.Fatal(err)
	}
	if got.Compression != s.Compression {
		t.Fatalf("compression mismatch")
	}
	if got.Superpage.Cluster != 42 || got.Superpage.Offset == nil || *got.Superpage.Offset != 3 {
		t.Fatalf("superpage mismatch: %+v", got.Superpage)
	}
	if got.FreelistHead != s.FreelistHead {
		t.Fatalf("freelist head mismatch")
	}
}

func TestStateEmptyFreelist(t *testing.T) {
	algo := checksum.SeaHash{}
	s := diskfmt.State{}
	buf := s.Encode(algo)
	got, err := diskfmt.DecodeState(buf, algo)
	if err != nil {
		t.Fatal(err)
	}
	if !got.FreelistHead.IsEmpty() {
		t.Fatal("expected empty freelist head")
	}
	if !got.Superpage.IsNull() {
		t.Fatal("expected null superpage")
	}
}

func TestPagePointerRoundTrip(t *testing.T) {
	offset := uint32(5)
	cases := []diskfmt.PagePointer{
		{Cluster: 1, Offset: nil, Checksum: 0},
		{Cluster: 0xFFFFFFFFFFFFFFFF, Offset: &offset, Checksum: 0xDEADBEEF},
	}
	for _, p := range cases {
		buf := make([]byte, diskfmt.PagePointerSize)
		p.Encode(buf)
		got := diskfmt.DecodePagePointer(buf)
		if got.Cluster != p.Cluster || got.Checksum != p.Checksum {
			t.Fatalf("got %+v, want %+v", got, p)
		}
		if (got.Offset == nil) != (p.Offset == nil) {
			t.Fatalf("offset nilness mismatch: %+v vs %+v", got, p)
		}
		if got.Offset != nil && *got.Offset != *p.Offset {
			t.Fatalf("offset value mismatch: %+v vs %+v", got, p)
		}
	}
}

func TestMetaclusterRoundTripAndTermination(t *testing.T) {
	m := diskfmt.Metacluster{
		NextChecksum: 0x1234,
		Next:         99,
		Free:         []diskfmt.ClusterPointer{1, 2, 3, 4, 5},
	}
	buf := m.Encode()
	got := diskfmt.DecodeMetacluster(buf)
	if got.NextChecksum != m.NextChecksum || got.Next != m.Next {
		t.Fatalf("got %+v, want %+v", got, m)
	}
	if len(got.Free) != len(m.Free) {
		t.Fatalf("free count = %d, want %d", len(got.Free), len(m.Free))
	}
	for i := range m.Free {
		if got.Free[i] != m.Free[i] {
			t.Fatalf("free[%d] = %v, want %v", i, got.Free[i], m.Free[i])
		}
	}
}

func TestMetaclusterMaxCapacity(t *testing.T) {
	free := make([]diskfmt.ClusterPointer, diskfmt.MaxFreePerMetacluster)
	for i := range free {
		free[i] = diskfmt.ClusterPointer(i + 1)
	}
	m := diskfmt.Metacluster{Free: free}
	buf := m.Encode()
	got := diskfmt.DecodeMetacluster(buf)
	if len(got.Free) != len(free) {
		t.Fatalf("got %d free slots, want %d", len(got.Free), len(free))
	}
}
