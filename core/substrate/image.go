package substrate

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

var imageMagic = [8]byte{'S', 'U', 'B', 'S', 'T', 'R', 'A', 'T'}

const imageVersion uint32 = 1

const (
	tagCFG0 = "CFG0"
	tagPRNG = "PRNG"
	tagSTAT = "STAT"
	tagUNIT = "UNIT"
	tagMASK = "MASK"
	tagSALI = "SALI"
	tagGRPS = "GRPS"
	tagLMOD = "LMOD"
	tagSYMB = "SYMB"
	tagCAUS = "CAUS"
)

var requiredChunks = []string{tagCFG0, tagPRNG, tagSTAT, tagUNIT, tagMASK, tagGRPS, tagSYMB, tagCAUS}

func compressBytes(data []byte) []byte {
	enc, _ := zstd.NewWriter(nil)
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)))
}

func decompressBytes(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// writeChunk writes one tag|compressed_len|uncompressed_len|payload chunk.
func writeChunk(w io.Writer, tag string, payload []byte) error {
	compressed := compressBytes(payload)
	if _, err := w.Write([]byte(tag)); err != nil {
		return err
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint32(lenBuf[0:4], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(lenBuf[4:8], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(compressed)
	return err
}

type rawChunk struct {
	tag     string
	payload []byte
}

func readChunks(r io.Reader) ([]rawChunk, error) {
	var out []rawChunk
	for {
		var tagBuf [4]byte
		_, err := io.ReadFull(r, tagBuf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newImageError(ErrImageTruncated, "")
		}
		var lenBuf [8]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, newImageError(ErrImageTruncated, string(tagBuf[:]))
		}
		compLen := binary.LittleEndian.Uint32(lenBuf[0:4])
		rawLen := binary.LittleEndian.Uint32(lenBuf[4:8])
		compressed := make([]byte, compLen)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return nil, newImageError(ErrImageTruncated, string(tagBuf[:]))
		}
		payload, err := decompressBytes(compressed)
		if err != nil || uint32(len(payload)) != rawLen {
			return nil, newImageError(ErrImageMalformed, string(tagBuf[:]))
		}
		out = append(out, rawChunk{tag: string(tagBuf[:]), payload: payload})
	}
	return out, nil
}

// groupRecord is the on-disk shape of a Group plus its paired Module.
type groupRecord struct {
	Name           string
	Kind           int
	Members        []int32
	Signature      map[uint32]float32
	RewardEMA      float32
	LastRoutedStep int64
	CreatedStep    int64
}

// countingWriter accumulates the number of bytes written without touching
// a real sink, so ImageSizeBytes can be computed cheaply.
type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// ImageSizeBytes returns the exact length SaveImage would write, computed
// via a counting sink instead of a real buffer.
func (b *Brain) ImageSizeBytes() (int64, error) {
	cw := &countingWriter{}
	if err := b.SaveImage(cw); err != nil {
		return 0, err
	}
	return cw.n, nil
}

// SaveImage writes the full persisted image to w, per §4.12.
func (b *Brain) SaveImage(w io.Writer) error {
	if _, err := w.Write(imageMagic[:]); err != nil {
		return err
	}
	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], imageVersion)
	if _, err := w.Write(verBuf[:]); err != nil {
		return err
	}

	cfgPayload, err := msgpack.Marshal(&b.cfg)
	if err != nil {
		return err
	}
	if err := writeChunk(w, tagCFG0, cfgPayload); err != nil {
		return err
	}

	var prngBuf [8]byte
	binary.LittleEndian.PutUint64(prngBuf[:], b.rng.State())
	if err := writeChunk(w, tagPRNG, prngBuf[:]); err != nil {
		return err
	}

	var statBuf [8]byte
	binary.LittleEndian.PutUint64(statBuf[:], uint64(b.ageSteps))
	if err := writeChunk(w, tagSTAT, statBuf[:]); err != nil {
		return err
	}

	b.csr.Compact()
	unitPayload := b.encodeUnitsAndCSR()
	if err := writeChunk(w, tagUNIT, unitPayload); err != nil {
		return err
	}

	maskPayload := b.encodeMasks()
	if err := writeChunk(w, tagMASK, maskPayload); err != nil {
		return err
	}

	saliPayload := make([]byte, 4*b.units.N())
	for i, s := range b.units.Salience {
		binary.LittleEndian.PutUint32(saliPayload[i*4:], math.Float32bits(s))
	}
	if err := writeChunk(w, tagSALI, saliPayload); err != nil {
		return err
	}

	var grpRecords, latentRecords []groupRecord
	for _, g := range b.groups {
		mod := b.modules[g.ModuleIdx]
		rec := groupRecord{
			Name: g.Name, Kind: int(g.Kind), Members: g.Members,
			Signature: mod.Signature, RewardEMA: mod.RewardEMA,
			LastRoutedStep: mod.LastRoutedStep, CreatedStep: mod.CreatedStep,
		}
		if g.Kind == KindLatent {
			latentRecords = append(latentRecords, rec)
		} else {
			grpRecords = append(grpRecords, rec)
		}
	}
	grpPayload, err := msgpack.Marshal(grpRecords)
	if err != nil {
		return err
	}
	if err := writeChunk(w, tagGRPS, grpPayload); err != nil {
		return err
	}
	if len(latentRecords) > 0 {
		lmodPayload, err := msgpack.Marshal(latentRecords)
		if err != nil {
			return err
		}
		if err := writeChunk(w, tagLMOD, lmodPayload); err != nil {
			return err
		}
	}

	names := make([]string, b.symbols.Len())
	for i := range names {
		names[i] = b.symbols.Name(uint32(i))
	}
	symPayload, err := msgpack.Marshal(names)
	if err != nil {
		return err
	}
	if err := writeChunk(w, tagSYMB, symPayload); err != nil {
		return err
	}

	causPayload, err := msgpack.Marshal(struct {
		Base  map[uint32]float32
		Edges map[uint64]float32
	}{Base: b.causal.base, Edges: b.causal.edges})
	if err != nil {
		return err
	}
	return writeChunk(w, tagCAUS, causPayload)
}

func (b *Brain) encodeUnitsAndCSR() []byte {
	n := b.units.N()
	e := b.csr.E()
	buf := new(bytes.Buffer)
	writeU32 := func(v uint32) { var tmp [4]byte; binary.LittleEndian.PutUint32(tmp[:], v); buf.Write(tmp[:]) }
	writeF32 := func(v float32) { writeU32(math.Float32bits(v)) }

	writeU32(uint32(n))
	for i := 0; i < n; i++ {
		writeF32(b.units.Amp[i])
		writeF32(b.units.Phase[i])
		writeF32(b.units.Bias[i])
		writeF32(b.units.Decay[i])
	}
	writeU32(uint32(e))
	for i := 0; i <= n; i++ {
		writeU32(uint32(b.csr.offsets[i]))
	}
	for i := 0; i < e; i++ {
		writeU32(uint32(b.csr.targets[i]))
		writeF32(b.csr.weights[i])
	}
	return buf.Bytes()
}

func (b *Brain) decodeUnitsAndCSR(payload []byte) error {
	r := bytes.NewReader(payload)
	readU32 := func() (uint32, error) {
		var tmp [4]byte
		if _, err := io.ReadFull(r, tmp[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(tmp[:]), nil
	}
	readF32 := func() (float32, error) {
		v, err := readU32()
		if err != nil {
			return 0, err
		}
		return math.Float32frombits(v), nil
	}

	n32, err := readU32()
	if err != nil {
		return newImageError(ErrImageMalformed, tagUNIT)
	}
	n := int(n32)
	u := &Units{
		Amp: make([]float32, n), Phase: make([]float32, n),
		Bias: make([]float32, n), Decay: make([]float32, n),
		Salience: make([]float32, n), Trace: make([]float32, n),
		Reserved: make([]bool, n), LearningEnabled: make([]bool, n),
		GroupOf: make([]int32, n),
	}
	for i := 0; i < n; i++ {
		if u.Amp[i], err = readF32(); err != nil {
			return newImageError(ErrImageMalformed, tagUNIT)
		}
		if u.Phase[i], err = readF32(); err != nil {
			return newImageError(ErrImageMalformed, tagUNIT)
		}
		if u.Bias[i], err = readF32(); err != nil {
			return newImageError(ErrImageMalformed, tagUNIT)
		}
		if u.Decay[i], err = readF32(); err != nil {
			return newImageError(ErrImageMalformed, tagUNIT)
		}
		u.LearningEnabled[i] = true
		u.GroupOf[i] = NoGroup
	}

	e32, err := readU32()
	if err != nil {
		return newImageError(ErrImageMalformed, tagUNIT)
	}
	e := int(e32)
	csr := &CSR{
		offsets:     make([]int32, n+1),
		targets:     make([]int32, e),
		weights:     make([]float32, e),
		eligibility: make([]float32, e),
	}
	for i := 0; i <= n; i++ {
		v, err := readU32()
		if err != nil {
			return newImageError(ErrImageMalformed, tagUNIT)
		}
		csr.offsets[i] = int32(v)
	}
	for i := 0; i < e; i++ {
		t, err := readU32()
		if err != nil {
			return newImageError(ErrImageMalformed, tagUNIT)
		}
		w, err := readF32()
		if err != nil {
			return newImageError(ErrImageMalformed, tagUNIT)
		}
		csr.targets[i] = int32(t)
		csr.weights[i] = w
	}

	b.units = u
	b.csr = csr
	return nil
}

func (b *Brain) encodeMasks() []byte {
	n := b.units.N()
	nBytes := (n + 7) / 8
	buf := make([]byte, 2*nBytes)
	for i := 0; i < n; i++ {
		if b.units.Reserved[i] {
			buf[i/8] |= 1 << uint(i%8)
		}
		if b.units.LearningEnabled[i] {
			buf[nBytes+i/8] |= 1 << uint(i%8)
		}
	}
	return buf
}

func (b *Brain) decodeMasks(payload []byte) error {
	n := b.units.N()
	nBytes := (n + 7) / 8
	if len(payload) != 2*nBytes {
		return newImageError(ErrImageIntegrityMismatch, "MASK")
	}
	for i := 0; i < n; i++ {
		b.units.Reserved[i] = payload[i/8]&(1<<uint(i%8)) != 0
		b.units.LearningEnabled[i] = payload[nBytes+i/8]&(1<<uint(i%8)) != 0
	}
	return nil
}

// LoadImage reconstructs a Brain from a persisted image. Missing optional
// chunks (SALI, LMOD) default; unknown chunks are skipped; a missing
// mandatory chunk or a reward symbol absent from SYMB is a fatal error.
func LoadImage(r io.Reader) (*Brain, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, newImageError(ErrImageTruncated, "")
	}
	if magic != imageMagic {
		return nil, newImageError(ErrImageMagicMismatch, "")
	}
	var verBuf [4]byte
	if _, err := io.ReadFull(r, verBuf[:]); err != nil {
		return nil, newImageError(ErrImageTruncated, "")
	}
	if binary.LittleEndian.Uint32(verBuf[:]) > imageVersion {
		return nil, newImageError(ErrImageVersionUnsupported, "")
	}

	chunks, err := readChunks(r)
	if err != nil {
		return nil, err
	}
	byTag := make(map[string][]byte)
	for _, c := range chunks {
		byTag[c.tag] = c.payload
	}
	for _, tag := range requiredChunks {
		if _, ok := byTag[tag]; !ok {
			return nil, newImageError(ErrImageMissingRequiredChunk, tag)
		}
	}

	b := &Brain{InstanceID: uuid.New(), symbols: newSymbolTable(), causal: newCausalMemory(), routedModules: make(map[int32]bool)}

	if err := msgpack.Unmarshal(byTag[tagCFG0], &b.cfg); err != nil {
		return nil, newImageError(ErrImageMalformed, tagCFG0)
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	if len(byTag[tagPRNG]) != 8 {
		return nil, newImageError(ErrImageMalformed, tagPRNG)
	}
	b.rng = NewRNG(binary.LittleEndian.Uint64(byTag[tagPRNG]))

	if len(byTag[tagSTAT]) != 8 {
		return nil, newImageError(ErrImageMalformed, tagSTAT)
	}
	b.ageSteps = int64(binary.LittleEndian.Uint64(byTag[tagSTAT]))

	if err := b.decodeUnitsAndCSR(byTag[tagUNIT]); err != nil {
		return nil, err
	}
	if b.cfg.UnitCount != b.units.N() {
		return nil, newImageError(ErrImageIntegrityMismatch, "unit_count")
	}

	if err := b.decodeMasks(byTag[tagMASK]); err != nil {
		return nil, err
	}

	if sali, ok := byTag[tagSALI]; ok && len(sali) == 4*b.units.N() {
		for i := range b.units.Salience {
			b.units.Salience[i] = math.Float32frombits(binary.LittleEndian.Uint32(sali[i*4:]))
		}
	}

	var names []string
	if err := msgpack.Unmarshal(byTag[tagSYMB], &names); err != nil {
		return nil, newImageError(ErrImageMalformed, tagSYMB)
	}
	for _, name := range names {
		b.symbols.Intern(name)
	}

	var grpRecords []groupRecord
	if err := msgpack.Unmarshal(byTag[tagGRPS], &grpRecords); err != nil {
		return nil, newImageError(ErrImageMalformed, tagGRPS)
	}
	var latentRecords []groupRecord
	if lmod, ok := byTag[tagLMOD]; ok {
		if err := msgpack.Unmarshal(lmod, &latentRecords); err != nil {
			return nil, newImageError(ErrImageMalformed, tagLMOD)
		}
	}
	b.restoreGroups(append(grpRecords, latentRecords...))

	var caus struct {
		Base  map[uint32]float32
		Edges map[uint64]float32
	}
	if err := msgpack.Unmarshal(byTag[tagCAUS], &caus); err != nil {
		return nil, newImageError(ErrImageMalformed, tagCAUS)
	}
	if caus.Base == nil {
		caus.Base = make(map[uint32]float32)
	}
	if caus.Edges == nil {
		caus.Edges = make(map[uint64]float32)
	}
	b.causal.base = caus.Base
	b.causal.edges = caus.Edges

	rewardPos, ok := b.symbols.Lookup(reservedRewardPosName)
	if !ok {
		return nil, newImageError(ErrSymbolMissing, reservedRewardPosName)
	}
	rewardNeg, ok := b.symbols.Lookup(reservedRewardNegName)
	if !ok {
		return nil, newImageError(ErrSymbolMissing, reservedRewardNegName)
	}
	b.rewardPosID = rewardPos
	b.rewardNegID = rewardNeg

	return b, nil
}

func (b *Brain) restoreGroups(records []groupRecord) {
	for _, rec := range records {
		g := &Group{Name: rec.Name, Kind: GroupKind(rec.Kind), Members: rec.Members, ModuleIdx: int32(len(b.modules))}
		for _, m := range rec.Members {
			if int(m) < b.units.N() {
				b.units.GroupOf[m] = int32(len(b.groups))
			}
		}
		mod := &Module{
			GroupIdx: int32(len(b.groups)), Signature: rec.Signature,
			RewardEMA: rec.RewardEMA, LastRoutedStep: rec.LastRoutedStep,
			IsLatent: g.Kind == KindLatent, CreatedStep: rec.CreatedStep,
		}
		if mod.Signature == nil {
			mod.Signature = make(map[uint32]float32)
		}
		b.groups = append(b.groups, g)
		b.modules = append(b.modules, mod)
	}
}

// SaveBytes encodes the image to a byte slice.
func (b *Brain) SaveBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.SaveImage(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadBytes decodes a Brain from a byte slice previously produced by SaveBytes.
func LoadBytes(data []byte) (*Brain, error) {
	return LoadImage(bytes.NewReader(data))
}
