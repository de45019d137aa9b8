//go:build windows

package clip

// #cgo LDFLAGS: -luser32
//
// #include <windows.h>
// #include <stdlib.h>
//
// static HWND scrivener_create_listener_window();
// static void scrivener_pump_messages(HWND hwnd, int* changed);
//
// static LRESULT CALLBACK scrivener_wnd_proc(HWND hwnd, UINT msg, WPARAM wp, LPARAM lp) {
//     if (msg == WM_CLIPBOARDUPDATE) {
//         PostMessage(hwnd, WM_USER + 1, 0, 0);
//         return 0;
//     }
//     return DefWindowProc(hwnd, msg, wp, lp);
// }
//
// static HWND scrivener_create_listener_window() {
//     WNDCLASS wc = {0};
//     wc.lpfnWndProc   = scrivener_wnd_proc;
//     wc.hInstance     = GetModuleHandle(NULL);
//     wc.lpszClassName = "ScrivenerClipboard";
//     RegisterClass(&wc);
//     HWND hwnd = CreateWindowEx(0, "ScrivenerClipboard", NULL, 0,
//         0, 0, 0, 0, HWND_MESSAGE, NULL, GetModuleHandle(NULL), NULL);
//     AddClipboardFormatListener(hwnd);
//     return hwnd;
// }
//
// static void scrivener_pump_messages(HWND hwnd, int* changed) {
//     MSG msg;
//     *changed = 0;
//     while (PeekMessage(&msg, hwnd, 0, 0, PM_REMOVE)) {
//         if (msg.message == WM_USER + 1) { *changed = 1; }
//         TranslateMessage(&msg);
//         DispatchMessage(&msg);
//     }
// }
import "C"

import (
	"log/slog"
	"runtime"
	"time"

	"golang.design/x/clipboard"

	"go.klb.dev/scrivener/internal/item"
)

type windowsBackend struct {
	watchCh chan struct{}
	done    chan struct{}
}

// New returns the Windows clipboard backend using AddClipboardFormatListener.
// clipboard.Init is called here rather than in init() so that CLI
// sub-commands (status, copy, paste) that never construct a Backend don't
// log spurious warnings.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, trying text fallback", "err", err)
		if b, terr := newTextBackend(); terr == nil {
			return b
		}
		slog.Warn("no clipboard helper found, running headless")
		return newHeadless()
	}
	b := &windowsBackend{
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go b.pump()
	return b
}

func (b *windowsBackend) Name() string { return "Windows Clipboard" }

// pump creates the listener window and drains its message queue. Both must
// happen on the same OS thread: Win32 message queues are per-thread.
func (b *windowsBackend) pump() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	hwnd := C.scrivener_create_listener_window()
	defer C.DestroyWindow(hwnd)

	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			var changed C.int
			C.scrivener_pump_messages(hwnd, &changed)
			if changed != 0 {
				select {
				case b.watchCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (b *windowsBackend) Read() (item.Data, error) {
	d := item.Data{}
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		d[item.MimeText] = text
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		d[item.MimePNG] = img
	}
	if len(d) == 0 {
		return nil, nil
	}
	return d, nil
}

func (b *windowsBackend) Write(d item.Data) error {
	if text, ok := d[item.MimeText]; ok {
		clipboard.Write(clipboard.FmtText, text)
	}
	if img, ok := d[item.MimePNG]; ok {
		clipboard.Write(clipboard.FmtImage, img)
	}
	return nil
}

func (b *windowsBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *windowsBackend) Close()                 { close(b.done) }
