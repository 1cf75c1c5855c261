package mcpserver

// PostFormatContract describes how a gist becomes a blog post so that LLM
// consumers can draft gists that build cleanly.
const PostFormatContract = `# Gist Post Format

Every public gist of the configured user becomes one post when it contains at
least one Markdown file with content.

## Source selection

1. Files are considered in name order; the first file ending in ` + "`" + `.md` + "`" + ` or
   ` + "`" + `.markdown` + "`" + ` with non-empty content is used. Other files are listed but not rendered.
2. Private gists are never published.

## Title and body

- When the first line starts with ` + "`" + `#` + "`" + `, it is the title (leading hashes stripped)
  and the rest of the file is the body.
- Otherwise the file name without its extension is the title and the whole file
  is the body.

## Tags and description

- Tags come from ` + "`" + `#hashtags` + "`" + ` in the gist description. They are lowercased,
  de-duplicated and sorted: ` + "`" + `"Notes on #K8s and #AI #ai"` + "`" + ` gives ` + "`" + `["ai", "k8s"]` + "`" + `.
- The post description is the gist description with hashtags removed.

## Body conventions

- Headings of level 2 to 6 form the table of contents. A heading may pin its
  anchor with ` + "`" + `{#custom-id}` + "`" + `; otherwise the anchor is the slug of its text.
- Links to your own gists (` + "`" + `https://gist.github.com/<user>/<id>` + "`" + `) are rewritten to
  ` + "`" + `/posts/<id>.html` + "`" + `; URL fragments are dropped.
- Fenced code blocks are syntax highlighted and excluded from the word count.

## Example

Description: ` + "`" + `Shipping a Go CLI #go #devops` + "`" + `

` + "```" + `markdown
# Shipping a Go CLI

Some intro text.

## Building {#build}

See also https://gist.github.com/rbstp/0123abcd for the release script.
` + "```" + `
`
