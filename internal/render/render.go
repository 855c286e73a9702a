package render

import (
	"fmt"
	"strings"
	"time"

	"PBW/internal/report"
)

func Generate(r *report.Report) (string, error) {
	var sb strings.Builder

	sb.WriteString("<html><head><title>PBW Build Report</title>")
	sb.WriteString(`<link href="https://cdnjs.cloudflare.com/ajax/libs/tailwindcss/2.2.19/tailwind.min.css" rel="stylesheet">`)
	sb.WriteString(`<link href="https://cdnjs.cloudflare.com/ajax/libs/highlight.js/11.3.1/styles/github-dark.min.css" rel="stylesheet">`)
	sb.WriteString(`<script src="https://cdnjs.cloudflare.com/ajax/libs/highlight.js/11.3.1/highlight.min.js"></script>`)
	sb.WriteString(`<script>hljs.highlightAll();</script>`)
	sb.WriteString(`<style>
		body { background-color: #1a202c; color: #cbd5e0; }
		.card { background-color: #2d3748; border-color: #4a5568; }
		.status-succeeded { color: #38a169; }
		.status-failed { color: #e53e3e; }
		.status-skipped { color: #a0aec0; }
	</style>`)
	sb.WriteString("</head><body>")
	sb.WriteString("<div class='container mx-auto mt-5'>")
	sb.WriteString("<h1 class='text-4xl font-bold mb-4'>PBW Build Report</h1>")
	sb.WriteString(fmt.Sprintf("<p class='mb-4'><strong>Date:</strong> %s</p>", time.Now().Format(time.RFC1123)))
	project := r.ProjectName
	if r.Version != "" {
		project = fmt.Sprintf("%s %s", r.ProjectName, r.Version)
	}
	sb.WriteString(fmt.Sprintf("<p class='mb-4'><strong>Project:</strong> %s</p>", project))
	sb.WriteString(fmt.Sprintf("<p class='mb-4'><strong>Builder:</strong> %s</p>", r.Builder))

	sb.WriteString("<h2 class='text-2xl font-semibold mt-4'>Toolchain</h2>")
	writeList(&sb, r.Toolchain)

	sb.WriteString("<h2 class='text-2xl font-semibold mt-4'>Preflight Findings</h2>")
	writeList(&sb, r.Problems)

	sb.WriteString("<h2 class='text-2xl font-semibold mt-4'>Floating Requirements</h2>")
	writeList(&sb, r.FloatingRequirements)

	sb.WriteString("<h2 class='text-2xl font-semibold mt-4'>Successful Builds</h2>")
	for _, result := range r.BuildResults {
		if result.Status == report.StatusSucceeded {
			writeResultCard(&sb, result, "status-succeeded")
		}
	}

	sb.WriteString("<h2 class='text-2xl font-semibold mt-4'>Failed Builds</h2>")
	for _, result := range r.BuildResults {
		switch result.Status {
		case report.StatusSucceeded, report.StatusSkipped, report.StatusDryRun:
		default:
			writeResultCard(&sb, result, "status-failed")
		}
	}

	sb.WriteString("<h2 class='text-2xl font-semibold mt-4'>Skipped Builds</h2>")
	for _, result := range r.BuildResults {
		if result.Status == report.StatusSkipped || result.Status == report.StatusDryRun {
			writeResultCard(&sb, result, "status-skipped")
		}
	}

	sb.WriteString("</div>") // Close container
	sb.WriteString("</body></html>")

	return sb.String(), nil
}

func writeList(sb *strings.Builder, items []string) {
	if len(items) == 0 {
		sb.WriteString("<p class='text-gray-500'>None</p>")
		return
	}
	sb.WriteString("<ul class='list-disc list-inside'>")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("<li class='mb-2'>%s</li>", item))
	}
	sb.WriteString("</ul>")
}

func writeResultCard(sb *strings.Builder, result report.BuildResult, statusClass string) {
	sb.WriteString("<div class='card border border-gray-600 rounded-lg p-4 mb-4'>")
	sb.WriteString("<div class='card-body'>")
	sb.WriteString(fmt.Sprintf("<p><strong>Target:</strong> %s</p>", result.Target))
	sb.WriteString("<div class='ml-4'>")
	sb.WriteString(fmt.Sprintf("<p class='%s'><strong>Status:</strong> %s</p>", statusClass, result.Status))
	if result.Duration > 0 {
		sb.WriteString(fmt.Sprintf("<p><strong>Duration:</strong> %s</p>", result.Duration.Round(time.Second)))
	}
	if result.Artifact != "" {
		sb.WriteString(fmt.Sprintf("<p><strong>Artifact:</strong> %s (%s)</p>", result.Artifact, report.FormatSize(result.Size)))
	}
	if result.SHA256 != "" {
		sb.WriteString(fmt.Sprintf("<p><strong>SHA-256:</strong> <code>%s</code></p>", result.SHA256))
	}
	if result.Command != "" {
		sb.WriteString(fmt.Sprintf("<p><strong>Command:</strong> <code>%s</code></p>", result.Command))
	}
	if result.Output != "" {
		sb.WriteString(fmt.Sprintf("<p><strong>Output:</strong><pre><code class='language-bash'>%s</code></pre></p>", result.Output))
	}
	sb.WriteString("</div><br>")
	sb.WriteString("</div>")
	sb.WriteString("</div>")
}
