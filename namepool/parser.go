package namepool

import (
	"context"
	"fmt"

	"uedump/events"
	"uedump/process"
	"uedump/storage"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Parser walks every block of the pool and installs the id to string
// map into Storage. It is the only writer of the Names latch.
type Parser struct {
	pool  *Pool
	store *storage.Store
	bus   *events.Bus
	log   *logger.Logger
}

func NewParser(pool *Pool, store *storage.Store, bus *events.Bus) *Parser {
	return &Parser{
		pool:  pool,
		store: store,
		bus:   bus,
		log:   logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "fname-pool")),
	}
}

// Parse reads the whole pool. Cancellation is checked at block
// boundaries; a cancelled parse does not install the latch. A malformed
// entry header ends its block and the walk continues with the next one.
func (p *Parser) Parse(ctx context.Context) (*storage.NameTable, error) {
	if table, ok := p.store.Names.Get(); ok {
		p.log.Infoln("NamePool already parsed,", table.Count(), "names")
		return table, nil
	}

	prof := p.pool.profile
	proc := p.pool.proc
	base := p.pool.base

	currentBlock, err := proc.ReadUINT32(base + process.ProcessMemoryAddress(prof.NameCurrentBlockOffset))
	if err != nil {
		return nil, process.FaultField(base+process.ProcessMemoryAddress(prof.NameCurrentBlockOffset), 4, "CurrentBlock", err)
	}
	currentCursor, err := proc.ReadUINT32(base + process.ProcessMemoryAddress(prof.NameCurrentCursorOffset))
	if err != nil {
		return nil, process.FaultField(base+process.ProcessMemoryAddress(prof.NameCurrentCursorOffset), 4, "CurrentByteCursor", err)
	}

	totalBlocks := int(currentBlock) + 1
	names := make(map[uint32]string)
	skipped := 0

	p.log.Infoln("Parsing NamePool:", totalBlocks, "blocks")

	for block := 0; block < totalBlocks; block++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		blockAddr, err := proc.ReadPOINTER(base + process.ProcessMemoryAddress(prof.NameBlocksOffset+8*uint64(block)))
		if err != nil || blockAddr == 0 {
			p.log.Warn("Block pointer unreadable, skipping block ", block)
			skipped++
			p.publish(block+1, totalBlocks, len(names), p.estimate(block+1, totalBlocks, len(names)))
			continue
		}

		size := prof.NameBlockSize
		if block == totalBlocks-1 {
			size = currentCursor
		}

		blob, err := proc.ReadBlob(blockAddr, process.ProcessMemorySize(size))
		if err != nil {
			p.log.Warn("Block unreadable, skipping block ", block)
			skipped++
			p.publish(block+1, totalBlocks, len(names), p.estimate(block+1, totalBlocks, len(names)))
			continue
		}

		blockSkipped := p.walkBlock(uint32(block), blob.Data(), names)
		skipped += blockSkipped

		p.publish(block+1, totalBlocks, len(names), p.estimate(block+1, totalBlocks, len(names)))
	}

	table := storage.NewNameTable(names, skipped)
	if err := p.store.Names.Set(table); err != nil {
		// A concurrent parse won the install; its snapshot is equivalent.
		installed, _ := p.store.Names.Get()
		return installed, nil
	}

	p.log.Infoln("NamePool parsed:", table.Count(), "names,", skipped, "skipped")
	return table, nil
}

// walkBlock consumes entries until the block is exhausted or a header
// is malformed. Returns the count of entries dropped.
func (p *Parser) walkBlock(block uint32, data []byte, names map[uint32]string) int {
	headerSize := int(p.pool.profile.NameEntryHeaderSize)
	stride := int(p.pool.profile.NameBlockStride)

	off := 0
	for off+headerSize <= len(data) {
		header := uint16(data[off]) | uint16(data[off+1])<<8
		length := int(header >> 6)
		wide := header&1 != 0

		if length == 0 {
			// Zero-length terminates the used part of a block.
			break
		}

		payload := length
		if wide {
			payload = length * 2
		}

		if off+headerSize+payload > len(data) {
			p.log.Warn(fmt.Sprintf("corrupt entry header in block %d at 0x%X: length %d exceeds remaining", block, off, length))
			return 1
		}

		id := p.pool.CompositeID(block, uint32(off/stride))
		names[id] = decodeName(data[off+headerSize:], length, wide)

		advance := headerSize + payload
		if rem := advance % stride; rem != 0 {
			advance += stride - rem
		}
		off += advance
	}
	return 0
}

// estimate projects the final name count from the blocks consumed so
// far. The last block reports the exact count.
func (p *Parser) estimate(done, total, count int) int {
	if done >= total || done == 0 {
		return count
	}
	return count * total / done
}

func (p *Parser) publish(chunk, totalChunks, count, estimate int) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(events.Progress{
		Name:         events.FNamePoolProgress,
		CurrentChunk: chunk,
		TotalChunks:  totalChunks,
		CurrentItems: count,
		TotalItems:   estimate,
	})
}
