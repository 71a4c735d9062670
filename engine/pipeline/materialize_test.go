package pipeline

import "testing"

func sampleKey() MaterializationKey {
	return MaterializationKey{
		PSOHash:            0x1111,
		RenderpassCompat:   0x2222,
		StageModuleHashes:  []uint64{0xAAAA, 0xBBBB},
		PipelineLayoutHash: 0x3333,
	}
}

// TestMaterializationKeyFoldStable covers the cache's lookup key: two
// structurally identical keys fold to the same uint64.
func TestMaterializationKeyFoldStable(t *testing.T) {
	a := sampleKey()
	b := sampleKey()
	if a.fold() != b.fold() {
		t.Errorf("identical keys folded differently: %d vs %d", a.fold(), b.fold())
	}
}

func TestMaterializationKeyFoldSensitiveToEachField(t *testing.T) {
	base := sampleKey()

	withDifferentPSO := sampleKey()
	withDifferentPSO.PSOHash = 0x9999
	if base.fold() == withDifferentPSO.fold() {
		t.Error("a different PSOHash should change the folded key")
	}

	withDifferentCompat := sampleKey()
	withDifferentCompat.RenderpassCompat = 0x9999
	if base.fold() == withDifferentCompat.fold() {
		t.Error("a different RenderpassCompat should change the folded key")
	}

	withDifferentLayout := sampleKey()
	withDifferentLayout.PipelineLayoutHash = 0x9999
	if base.fold() == withDifferentLayout.fold() {
		t.Error("a different PipelineLayoutHash should change the folded key")
	}

	withDifferentStages := sampleKey()
	withDifferentStages.StageModuleHashes = []uint64{0xAAAA, 0xCCCC}
	if base.fold() == withDifferentStages.fold() {
		t.Error("a different stage-module hash list should change the folded key")
	}
}

// TestMaterializationCacheLookupRoundTrip covers materialization-cache
// lookup: a pipeline Stored under a key is retrievable via Lookup with an
// identical key, and misses for an unseen key.
func TestMaterializationCacheLookupRoundTrip(t *testing.T) {
	c := NewMaterializationCache(nil)
	key := sampleKey()

	if _, ok := c.Lookup(key); ok {
		t.Fatal("Lookup should miss before anything is Stored")
	}

	c.Store(key, nil)
	if _, ok := c.Lookup(key); !ok {
		t.Error("Lookup should hit for a key just Stored")
	}

	other := sampleKey()
	other.PSOHash = 0x4444
	if _, ok := c.Lookup(other); ok {
		t.Error("Lookup should miss for a key that was never Stored")
	}
}
