package parity

import (
	"bytes"
	"testing"
)

func makeData(n int) [][]byte {
	data := make([][]byte, n)
	for i := range data {
		data[i] = bytes.Repeat([]byte{byte('a' + i)}, 10+i)
	}
	return data
}

func toShards(data [][]byte) []Shard {
	shards := make([]Shard, len(data))
	for i, d := range data {
		shards[i] = Shard{Data: d, RealLength: len(d)}
	}
	return shards
}

func TestCreateParity_ProducesRequestedCount(t *testing.T) {
	data := makeData(4)
	parityShards, err := CreateParity(data, 2)
	if err != nil {
		t.Fatalf("CreateParity() error = %v", err)
	}
	if len(parityShards) != 2 {
		t.Fatalf("len(parityShards) = %d, want 2", len(parityShards))
	}
	maxLen := 13 // data[3] has length 13
	for i, p := range parityShards {
		if len(p) != maxLen {
			t.Errorf("parityShards[%d] length = %d, want %d", i, len(p), maxLen)
		}
	}
}

func TestRepairWithParity_ReconstructsSingleBrokenDataShard(t *testing.T) {
	data := makeData(4)
	parityShards, err := CreateParity(data, 2)
	if err != nil {
		t.Fatalf("CreateParity() error = %v", err)
	}

	dataInfo := toShards(data)
	parityInfo := toShards(parityShards)

	broken := 1
	want := append([]byte{}, dataInfo[broken].Data...)
	dataInfo[broken] = Shard{Broken: true, RealLength: dataInfo[broken].RealLength}

	if err := RepairWithParity(dataInfo, parityInfo); err != nil {
		t.Fatalf("RepairWithParity() error = %v", err)
	}
	if !bytes.Equal(dataInfo[broken].Data, want) {
		t.Errorf("recovered data = %q, want %q", dataInfo[broken].Data, want)
	}
}

func TestRepairWithParity_ReconstructsBrokenParityShard(t *testing.T) {
	data := makeData(3)
	parityShards, err := CreateParity(data, 2)
	if err != nil {
		t.Fatalf("CreateParity() error = %v", err)
	}

	dataInfo := toShards(data)
	parityInfo := toShards(parityShards)

	want := append([]byte{}, parityInfo[0].Data...)
	parityInfo[0] = Shard{Broken: true, RealLength: len(want)}

	if err := RepairWithParity(dataInfo, parityInfo); err != nil {
		t.Fatalf("RepairWithParity() error = %v", err)
	}
	if !bytes.Equal(parityInfo[0].Data, want) {
		t.Errorf("recovered parity = %q, want %q", parityInfo[0].Data, want)
	}
}

func TestRepairWithParity_TooManyBrokenFails(t *testing.T) {
	data := makeData(4)
	parityShards, err := CreateParity(data, 2)
	if err != nil {
		t.Fatalf("CreateParity() error = %v", err)
	}

	dataInfo := toShards(data)
	parityInfo := toShards(parityShards)

	dataInfo[0] = Shard{Broken: true, RealLength: dataInfo[0].RealLength}
	dataInfo[1] = Shard{Broken: true, RealLength: dataInfo[1].RealLength}
	dataInfo[2] = Shard{Broken: true, RealLength: dataInfo[2].RealLength}

	if err := RepairWithParity(dataInfo, parityInfo); err == nil {
		t.Error("RepairWithParity() succeeded with more broken shards than parity can cover")
	}
}

func TestRepairWithParity_NoMissingShardsIsNoop(t *testing.T) {
	data := makeData(3)
	parityShards, err := CreateParity(data, 2)
	if err != nil {
		t.Fatalf("CreateParity() error = %v", err)
	}
	dataInfo := toShards(data)
	parityInfo := toShards(parityShards)

	if err := RepairWithParity(dataInfo, parityInfo); err != nil {
		t.Fatalf("RepairWithParity() error = %v", err)
	}
	for i, d := range data {
		if !bytes.Equal(dataInfo[i].Data, d) {
			t.Errorf("dataInfo[%d] changed unexpectedly", i)
		}
	}
}
