package handlers

// intakeSchema describes the order document accepted at /api/intake.
const intakeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["orderNumber", "customerName", "customerPhone", "customerAddress", "pincode", "tlName", "memberName", "items", "subtotal", "deliveryFee", "grandTotal"],
  "properties": {
    "orderNumber":     { "type": "string", "minLength": 1 },
    "customerName":    { "type": "string", "minLength": 1 },
    "customerPhone":   { "type": "string", "pattern": "^[0-9]{10}$" },
    "customerAddress": { "type": "string", "minLength": 1 },
    "pincode":         { "type": "string", "pattern": "^[0-9]{6}$" },
    "tlName":          { "type": "string", "minLength": 1 },
    "memberName":      { "type": "string", "minLength": 1 },
    "subtotal":        { "type": "integer", "minimum": 0 },
    "discount":        { "type": "integer", "minimum": 0 },
    "deliveryFee":     { "type": "integer", "minimum": 0 },
    "grandTotal":      { "type": "integer", "minimum": 0 },
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["productName", "size", "sku", "quantity", "unitPrice"],
        "properties": {
          "productName": { "type": "string", "minLength": 1 },
          "size":        { "type": "string", "minLength": 1 },
          "sku":         { "type": "string", "minLength": 1 },
          "quantity":    { "type": "integer", "minimum": 1 },
          "unitPrice":   { "type": "integer", "minimum": 0 },
          "lineTotal":   { "type": "integer", "minimum": 0 }
        }
      }
    }
  }
}`
