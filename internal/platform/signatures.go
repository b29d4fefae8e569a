package platform

import "inclusiv/internal/domain"

// DefaultSignatures is the production signature table. Platforms built on
// top of another (WooCommerce on WordPress) come before their host, and
// within a platform header/cookie markers precede markup heuristics.
func DefaultSignatures() []Signature {
	return []Signature{
		{Platform: domain.PlatformShopify, Markers: []Marker{
			{Kind: Cookie, Name: "_shopify_"},
			{Kind: Header, Name: "X-ShopId"},
			{Kind: Header, Name: "X-Shopify-Stage"},
			{Kind: ScriptSrc, Value: "cdn.shopify.com"},
			{Kind: LinkHref, Value: "cdn.shopify.com"},
			{Kind: Markup, Value: "Shopify.theme"},
		}},
		{Platform: domain.PlatformBigCommerce, Markers: []Marker{
			{Kind: Cookie, Name: "SHOP_SESSION_TOKEN"},
			{Kind: Header, Name: "X-BC-Storefront"},
			{Kind: ScriptSrc, Value: "bigcommerce.com"},
			{Kind: LinkHref, Value: "cdn11.bigcommerce.com"},
			{Kind: Markup, Value: "data-stencil"},
		}},
		{Platform: domain.PlatformMagento, Markers: []Marker{
			{Kind: Cookie, Name: "X-Magento-Vary"},
			{Kind: Header, Name: "X-Magento-Cache-Debug"},
			{Kind: Header, Name: "X-Magento-Tags"},
			{Kind: Selector, Name: "[data-mage-init]"},
			{Kind: Markup, Value: "mage/cookies"},
		}},
		{Platform: domain.PlatformWooCommerce, Markers: []Marker{
			{Kind: Cookie, Name: "woocommerce_"},
			{Kind: Generator, Value: "WooCommerce"},
			{Kind: Selector, Name: "body.woocommerce, body.woocommerce-page"},
			{Kind: LinkHref, Value: "/plugins/woocommerce/"},
			{Kind: ScriptSrc, Value: "/plugins/woocommerce/"},
		}},
		{Platform: domain.PlatformWordPress, Markers: []Marker{
			{Kind: Cookie, Name: "wordpress_"},
			{Kind: Header, Name: "Link", Value: "api.w.org"},
			{Kind: Generator, Value: "WordPress"},
			{Kind: LinkHref, Value: "/wp-content/"},
			{Kind: ScriptSrc, Value: "/wp-includes/"},
		}},
		{Platform: domain.PlatformWix, Markers: []Marker{
			{Kind: Header, Name: "X-Wix-Request-Id"},
			{Kind: Generator, Value: "Wix.com"},
			{Kind: ScriptSrc, Value: "static.parastorage.com"},
		}},
		{Platform: domain.PlatformSquarespace, Markers: []Marker{
			{Kind: Header, Name: "Server", Value: "Squarespace"},
			{Kind: ScriptSrc, Value: "squarespace.com"},
			{Kind: LinkHref, Value: "static1.squarespace.com"},
			{Kind: Markup, Value: "This is Squarespace."},
		}},
		{Platform: domain.PlatformWebflow, Markers: []Marker{
			{Kind: Selector, Name: "html[data-wf-site]"},
			{Kind: Generator, Value: "Webflow"},
			{Kind: ScriptSrc, Value: "website-files.com"},
		}},
	}
}
