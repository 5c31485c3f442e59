package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/kevmo314/go-u3vterm"
)

// pickDevice lets the user choose between several matching cameras.
func pickDevice(candidates []*u3v.Candidate) (int, error) {
	app := tview.NewApplication()
	choice := -1
	list := newDeviceList(candidates, func(i int) {
		choice = i
		app.Stop()
	}, app.Stop)
	if err := app.SetRoot(list, true).Run(); err != nil {
		return -1, err
	}
	if choice < 0 {
		return -1, u3v.ErrNoSelection
	}
	return choice, nil
}

func newDeviceList(candidates []*u3v.Candidate, selected func(int), cancel func()) *tview.List {
	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true).SetTitle(fmt.Sprintf("Multiple devices found (%d), Esc or q to cancel", len(candidates)))
	for i, c := range candidates {
		var shortcut rune
		if i < 10 {
			shortcut = rune('0' + i)
		}
		list.AddItem(tview.Escape(fmt.Sprintf("[%d] %s", i, c)), "", shortcut, nil)
	}
	list.SetSelectedFunc(func(i int, _, _ string, _ rune) { selected(i) })
	list.SetDoneFunc(cancel)
	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune && event.Rune() == 'q' {
			cancel()
			return nil
		}
		return event
	})
	return list
}
