package cli

import (
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/mrlokans/librarysync/internal/transfer"
)

// transferBar renders transfer samples as a byte progress bar. The bar is
// created on the first sample, once the total size is known.
type transferBar struct {
	description string

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newTransferBar(description string) *transferBar {
	return &transferBar{description: description}
}

func (b *transferBar) Update(p transfer.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		total := p.Total
		if total <= 0 {
			total = -1
		}
		b.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetDescription(b.description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(progressThrottle),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	b.bar.Set64(p.Transferred)
}

func (b *transferBar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		b.bar.Finish()
	}
}
