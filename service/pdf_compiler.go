package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"cardpress/geometry"
)

// PDFCompilerInterface turns a finished document markup into PDF bytes
// with the given physical page dimensions.
type PDFCompilerInterface interface {
	Compile(ctx context.Context, htmlDoc string, pageW, pageH geometry.MM) ([]byte, error)
}

// ChromePDFCompiler compiles markup to PDF through headless
// Chrome/Chromium. The document is passed as a data URL so no web server
// is involved; images are already embedded as data URIs by the renderer.
type ChromePDFCompiler struct {
	chromePath string
	logger     *zap.SugaredLogger
}

// Ensure ChromePDFCompiler implements PDFCompilerInterface.
var _ PDFCompilerInterface = (*ChromePDFCompiler)(nil)

// NewChromePDFCompiler creates a compiler. chromePath may be empty, in
// which case common installation paths are probed.
func NewChromePDFCompiler(chromePath string, logger *zap.SugaredLogger) *ChromePDFCompiler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ChromePDFCompiler{chromePath: chromePath, logger: logger}
}

// detectChromePath returns the configured executable if it exists,
// otherwise probes common installation paths.
func (c *ChromePDFCompiler) detectChromePath() string {
	if c.chromePath != "" {
		if _, err := os.Stat(c.chromePath); err == nil {
			return c.chromePath
		}
	}
	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Compile prints the document to PDF. Page dimensions are passed both via
// the document's @page rule and as explicit paper dimensions (Chrome takes
// inches), with zero margins on every side.
func (c *ChromePDFCompiler) Compile(ctx context.Context, htmlDoc string, pageW, pageH geometry.MM) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox, // required in Docker/containers
	)
	if path := c.detectChromePath(); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	chromedpCtx, chromedpCancel := chromedp.NewContext(allocCtx)
	defer chromedpCancel()

	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))

	var pdfBuf []byte
	err := chromedp.Run(chromedpCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body"),
		// Wait for fonts and any remaining images before printing.
		chromedp.Evaluate(`
			(function() {
				return Promise.all([
					document.fonts.ready,
					Promise.all(Array.from(document.querySelectorAll('img')).map(img => {
						return new Promise((resolve) => {
							if (img.complete) { resolve(); return; }
							const timeout = setTimeout(() => resolve(), 5000);
							img.onload = () => { clearTimeout(timeout); resolve(); };
							img.onerror = () => { clearTimeout(timeout); resolve(); };
						});
					}))
				]);
			})();
		`, nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(pageW.Inches()).
				WithPaperHeight(pageH.Inches()).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	c.logger.Infow("✓ PDF compiled", "bytes", len(pdfBuf))
	return pdfBuf, nil
}
