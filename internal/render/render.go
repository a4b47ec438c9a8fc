// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package render formats resolved review data for terminals and for
// structured output.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"github.com/gerritkit/gert/internal/gerrit"
)

// displayWidth returns the number of terminal cells s occupies,
// counting East Asian wide and fullwidth runes as two.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func padRight(s string, w int) string {
	if d := w - displayWidth(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

func padLeft(s string, w int) string {
	if d := w - displayWidth(s); d > 0 {
		return strings.Repeat(" ", d) + s
	}
	return s
}

// accountName picks the best display name an account offers.
func accountName(a *gerrit.Account) string {
	switch {
	case a == nil:
		return ""
	case a.Name != "":
		return a.Name
	case a.DisplayName != "":
		return a.DisplayName
	case a.Username != "":
		return a.Username
	}
	return a.Email
}

// ChangeTable writes one aligned line per change: a right-aligned
// number, the branch, and the subject. With verbose, project, topic,
// status, and owner columns appear between number and subject.
// Column widths are terminal display cells, so wide characters keep
// the table straight. No changes, no output.
func ChangeTable(w io.Writer, changes []*gerrit.Change, verbose bool) error {
	if len(changes) == 0 {
		return nil
	}
	rows := make([][]string, len(changes))
	for i, ch := range changes {
		num := strconv.Itoa(ch.Number)
		if verbose {
			rows[i] = []string{num, ch.Project, ch.Branch, ch.Topic, ch.Status, accountName(ch.Owner), ch.Subject}
		} else {
			rows[i] = []string{num, ch.Branch, ch.Subject}
		}
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for j, cell := range row {
			if d := displayWidth(cell); d > widths[j] {
				widths[j] = d
			}
		}
	}

	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(padLeft(row[0], widths[0]))
		last := len(row) - 1
		for j := 1; j < last; j++ {
			sb.WriteByte(' ')
			sb.WriteString(padRight(row[j], widths[j]))
		}
		sb.WriteByte(' ')
		sb.WriteString(row[last])
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Threads writes comment threads as text: a path:line header with a
// resolution marker, then each comment's author and date with the
// message body indented below. Threads are separated by blank lines.
func Threads(w io.Writer, threads []*gerrit.CommentThread) error {
	var sb strings.Builder
	for i, th := range threads {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(th.Path)
		if th.Line > 0 {
			sb.WriteString(":")
			sb.WriteString(strconv.Itoa(th.Line))
		}
		if th.Resolved {
			sb.WriteString(" [resolved]\n")
		} else {
			sb.WriteString(" [unresolved]\n")
		}
		for _, c := range th.Comments {
			author := accountName(c.Author)
			if author == "" {
				author = "unknown"
			}
			sb.WriteString("  ")
			sb.WriteString(author)
			if c.PatchSet > 0 {
				fmt.Fprintf(&sb, " (PS%d)", c.PatchSet)
			}
			if c.Updated != "" {
				sb.WriteString(" ")
				sb.WriteString(c.Updated)
			}
			sb.WriteByte('\n')
			for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
				sb.WriteString("    ")
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// ThreadSummary writes the one-line thread tally.
func ThreadSummary(w io.Writer, threads []*gerrit.CommentThread) error {
	unresolved := 0
	for _, th := range threads {
		if !th.Resolved {
			unresolved++
		}
	}
	plural := "s"
	if len(threads) == 1 {
		plural = ""
	}
	_, err := fmt.Fprintf(w, "%d thread%s: %d unresolved, %d resolved\n",
		len(threads), plural, unresolved, len(threads)-unresolved)
	return err
}

// Messages writes review messages with indented bodies.
func Messages(w io.Writer, msgs []gerrit.Message) error {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		author := accountName(m.Author)
		if author == "" {
			author = "unknown"
		}
		sb.WriteString("  ")
		sb.WriteString(author)
		if m.RevisionNumber > 0 {
			fmt.Fprintf(&sb, " (patchset %d)", m.RevisionNumber)
		}
		if m.Date != "" {
			sb.WriteString(" ")
			sb.WriteString(m.Date)
		}
		sb.WriteByte('\n')
		for _, line := range strings.Split(strings.TrimRight(m.Message, "\n"), "\n") {
			sb.WriteString("    ")
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// ChangeHeader writes the identifying lines for a change.
func ChangeHeader(w io.Writer, ch *gerrit.Change, baseURL string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Change %d: %s\n", ch.Number, ch.Subject)
	fmt.Fprintf(&sb, "Project: %s | Branch: %s | Status: %s\n", ch.Project, ch.Branch, ch.Status)
	if owner := accountName(ch.Owner); owner != "" {
		if ch.Owner.Email != "" {
			fmt.Fprintf(&sb, "Owner: %s <%s>\n", owner, ch.Owner.Email)
		} else {
			fmt.Fprintf(&sb, "Owner: %s\n", owner)
		}
	}
	if ch.Topic != "" {
		fmt.Fprintf(&sb, "Topic: %s\n", ch.Topic)
	}
	if baseURL != "" {
		fmt.Fprintf(&sb, "URL: %s\n", ChangeURL(baseURL, ch.Project, ch.Number))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// ChangeText writes the full text report for a change: header, review
// messages, inline comment threads, and the tally.
func ChangeText(w io.Writer, ch *gerrit.Change, threads []*gerrit.CommentThread, baseURL string) error {
	if err := ChangeHeader(w, ch, baseURL); err != nil {
		return err
	}
	if len(ch.Messages) > 0 {
		if _, err := io.WriteString(w, "\nReview messages:\n\n"); err != nil {
			return err
		}
		if err := Messages(w, ch.Messages); err != nil {
			return err
		}
	}
	if len(threads) > 0 {
		if _, err := io.WriteString(w, "\nInline comments:\n\n"); err != nil {
			return err
		}
		if err := Threads(w, threads); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return ThreadSummary(w, threads)
}
