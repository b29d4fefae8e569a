package remediation

import "inclusiv/internal/domain"

const dequeRules = "https://dequeuniversity.com/rules/axe/4.10/"

// DefaultTable covers the rules that account for most findings on commerce
// sites.
func DefaultTable() Table {
	return Table{
		"image-alt": {
			Generic: domain.Remediation{
				Title:   "Add alternative text to images",
				Summary: "Every informative <img> needs an alt attribute describing it; decorative images need alt=\"\".",
				Steps: []string{
					"Find each flagged <img> element.",
					"Add alt text that conveys the image's purpose, or alt=\"\" if it is purely decorative.",
				},
				HelpURL: dequeRules + "image-alt",
			},
			Platforms: map[domain.Platform]domain.Remediation{
				domain.PlatformShopify: {
					Title:   "Add alt text to product and theme images",
					Summary: "Shopify stores alt text per media item; themes render it through the image_tag filter.",
					Steps: []string{
						"In Admin > Products, open each product and click a media item to edit its alt text.",
						"For theme images, edit the section in the theme editor and fill in the image alt field.",
						"Check custom Liquid uses {{ image | image_url | image_tag: alt: image.alt }}.",
					},
				},
				domain.PlatformWordPress: {
					Title:   "Add alt text in the Media Library",
					Summary: "WordPress outputs the Alternative Text field of each attachment.",
					Steps: []string{
						"Open Media > Library and select each flagged image.",
						"Fill in Alternative Text and save.",
						"Re-insert images in posts that hard-code an empty alt.",
					},
				},
				domain.PlatformWooCommerce: {
					Title:   "Add alt text to product images",
					Summary: "WooCommerce product galleries use the attachment Alternative Text field.",
					Steps: []string{
						"Edit the product and open each gallery image in the media modal.",
						"Fill in Alternative Text and update the product.",
					},
				},
				domain.PlatformWix: {
					Title:   "Set alt text in the Wix editor",
					Summary: "Wix images take alt text from the image settings panel.",
					Steps: []string{
						"Select the image, open Settings and fill in 'What's in the image?'.",
					},
				},
				domain.PlatformSquarespace: {
					Title:   "Add image descriptions in Squarespace",
					Summary: "Squarespace uses the image block's filename or description as alt text.",
					Steps: []string{
						"Edit the image block and fill in the Image Alt Text field under Content.",
					},
				},
			},
		},
		"color-contrast": {
			Generic: domain.Remediation{
				Title:   "Increase text colour contrast",
				Summary: "Normal text needs a 4.5:1 contrast ratio with its background; large text needs 3:1.",
				Steps: []string{
					"Measure foreground and background colours of the flagged text.",
					"Darken the text or lighten the background until the ratio passes.",
				},
				HelpURL: dequeRules + "color-contrast",
			},
			Platforms: map[domain.Platform]domain.Remediation{
				domain.PlatformShopify: {
					Title:   "Adjust theme colour settings",
					Summary: "Most Shopify themes drive text colours from Theme settings > Colors.",
					Steps: []string{
						"Open Online Store > Themes > Customize > Theme settings > Colors.",
						"Pick text and button colours that reach 4.5:1 against their backgrounds.",
					},
				},
				domain.PlatformWebflow: {
					Title:   "Fix contrast in Webflow styles",
					Summary: "Webflow's style panel flags contrast issues on the selected class.",
					Steps: []string{
						"Select the flagged element and edit its class Typography colour.",
					},
				},
			},
		},
		"link-name": {
			Generic: domain.Remediation{
				Title:   "Give links discernible text",
				Summary: "Links must have text, an aria-label, or an image with alt text so screen readers can announce them.",
				Steps: []string{
					"Add visible text inside the <a>, or aria-label for icon-only links.",
				},
				HelpURL: dequeRules + "link-name",
			},
		},
		"button-name": {
			Generic: domain.Remediation{
				Title:   "Label buttons",
				Summary: "Buttons need an accessible name from their text, aria-label or aria-labelledby.",
				Steps: []string{
					"Add text inside the <button>, or aria-label for icon buttons such as cart and search.",
				},
				HelpURL: dequeRules + "button-name",
			},
			Platforms: map[domain.Platform]domain.Remediation{
				domain.PlatformShopify: {
					Title:   "Label theme icon buttons",
					Summary: "Cart, search and menu icons in Shopify themes are often icon-only buttons.",
					Steps: []string{
						"Edit the header section Liquid and add aria-label to icon buttons, e.g. aria-label=\"{{ 'general.cart.view' | t }}\".",
					},
				},
			},
		},
		"label": {
			Generic: domain.Remediation{
				Title:   "Associate labels with form fields",
				Summary: "Every input needs a <label for>, aria-label or aria-labelledby.",
				Steps: []string{
					"Wrap the input in a <label> or add a <label for=\"id\"> matching the input id.",
				},
				HelpURL: dequeRules + "label",
			},
		},
		"html-has-lang": {
			Generic: domain.Remediation{
				Title:   "Declare the page language",
				Summary: "The <html> element needs a lang attribute so assistive tech picks the right pronunciation.",
				Steps:   []string{"Add lang=\"en\" (or the page's language) to the <html> tag."},
				HelpURL: dequeRules + "html-has-lang",
			},
			Platforms: map[domain.Platform]domain.Remediation{
				domain.PlatformShopify: {
					Title:   "Declare the language in theme.liquid",
					Summary: "Shopify themes set the language on the <html> tag in layout/theme.liquid.",
					Steps:   []string{"Ensure layout/theme.liquid has <html lang=\"{{ request.locale.iso_code }}\">."},
				},
				domain.PlatformWordPress: {
					Title:   "Use language_attributes() in header.php",
					Summary: "Classic WordPress themes print lang through language_attributes().",
					Steps:   []string{"Make sure header.php renders <html <?php language_attributes(); ?>>."},
				},
			},
		},
		"document-title": {
			Generic: domain.Remediation{
				Title:   "Add a page title",
				Summary: "Each page needs a non-empty <title> describing it.",
				Steps:   []string{"Set a unique, descriptive <title> in the document head."},
				HelpURL: dequeRules + "document-title",
			},
		},
		"heading-order": {
			Generic: domain.Remediation{
				Title:   "Keep heading levels sequential",
				Summary: "Heading levels should only increase by one so the outline is navigable.",
				Steps:   []string{"Change skipped heading levels (e.g. h2 followed by h4) to the next level."},
				HelpURL: dequeRules + "heading-order",
			},
		},
		"region": {
			Generic: domain.Remediation{
				Title:   "Place content inside landmarks",
				Summary: "All page content should be contained by landmarks such as <header>, <main>, <nav> and <footer>.",
				Steps:   []string{"Wrap stray content blocks in the appropriate landmark element."},
				HelpURL: dequeRules + "region",
			},
		},
		"landmark-one-main": {
			Generic: domain.Remediation{
				Title:   "Add a main landmark",
				Summary: "Each page should have exactly one <main> element.",
				Steps:   []string{"Wrap the primary page content in <main>."},
				HelpURL: dequeRules + "landmark-one-main",
			},
		},
		"duplicate-id": {
			Generic: domain.Remediation{
				Title:   "Make id attributes unique",
				Summary: "Duplicate ids break label associations and ARIA references.",
				Steps:   []string{"Rename repeated ids, typically in repeated product cards or template partials."},
				HelpURL: dequeRules + "duplicate-id",
			},
		},
		"frame-title": {
			Generic: domain.Remediation{
				Title:   "Title embedded frames",
				Summary: "<iframe> elements need a title describing their content.",
				Steps:   []string{"Add title=\"...\" to each embed such as video players and chat widgets."},
				HelpURL: dequeRules + "frame-title",
			},
		},
		"meta-viewport": {
			Generic: domain.Remediation{
				Title:   "Allow zooming",
				Summary: "The viewport meta tag must not disable pinch zoom.",
				Steps:   []string{"Remove user-scalable=no and maximum-scale below 2 from the viewport meta tag."},
				HelpURL: dequeRules + "meta-viewport",
			},
		},
		"aria-required-attr": {
			Generic: domain.Remediation{
				Title:   "Provide required ARIA attributes",
				Summary: "Elements with an ARIA role must carry the attributes that role requires.",
				Steps:   []string{"Add the missing attributes listed for each flagged role, e.g. aria-checked on role=\"checkbox\"."},
				HelpURL: dequeRules + "aria-required-attr",
			},
		},
		"list": {
			Generic: domain.Remediation{
				Title:   "Use list markup correctly",
				Summary: "<ul> and <ol> may only contain <li>, <script> or <template> children.",
				Steps:   []string{"Move other elements inside <li> items."},
				HelpURL: dequeRules + "list",
			},
		},
	}
}
