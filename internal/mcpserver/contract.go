package mcpserver

// BlockFormatContract describes the read-more block markup and the content
// file format that LLM consumers should follow when writing posts.
const BlockFormatContract = `# Read More Block Format

A post "embeds the read-more block" when its body contains the block's
opening comment. The marker index is rebuilt on every canonical save;
autosaves and revisions never change it.

## Block markup

` + "```" + `html
<!-- wp:starford/read-more {"selectedPost":{"id":42,"title":"Other post","link":"https://example.com/other-post/"}} /-->
` + "```" + `

Rendered on the site as:

` + "```" + `html
<p class="read-more"><a href="https://example.com/other-post/">Read More: Other post</a></p>
` + "```" + `

## Content files

Posts imported from the content directory are ` + "`" + `.html` + "`" + ` files with YAML
frontmatter:

` + "```" + `html
---
id: 42                       # REQUIRED - positive post ID
title: Other post            # OPTIONAL - defaults to the first <h1>
status: publish              # OPTIONAL - draft unless "publish"
slug: other-post             # OPTIONAL - permalink slug
date: 2024-03-01             # OPTIONAL - YYYY-MM-DD or RFC 3339
save: canonical              # OPTIONAL - canonical, autosave or revision
---
<p>Body HTML.</p>
` + "```" + `

## Rules

1. Only published posts are searchable or selectable.
2. A post never links to itself: the editor excludes the current post.
3. Selections reference posts by ID; the stored title and link may go stale.
4. Date filters are whole days and both bounds are inclusive.
`
