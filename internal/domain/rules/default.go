package rules

// Default returns the built-in rule set used when no rules file is configured.
func Default() *RuleSet {
	rs, _, err := compile(defaultDocument())
	if err != nil {
		panic("rules: built-in rule set does not compile: " + err.Error())
	}
	return rs
}

func defaultDocument() document {
	return document{
		FieldMappings: map[string][]string{
			"name":             {"name", "Name", "full_name", "Full_Name"},
			"first_name":       {"first_name", "firstName", "FirstName", "First_Name"},
			"last_name":        {"last_name", "lastName", "LastName", "Last_Name"},
			"customer_name":    {"customerName", "customer_name"},
			"email":            {"email", "Email", "email_address", "Email_Address", "customerEmail"},
			"phone":            {"phone", "Phone", "mobile", "Mobile"},
			"company":          {"company", "Company", "customerCompany", "company_name"},
			"message":          {"message", "Message", "description", "Description"},
			"event_name":       {"event_name", "eventName"},
			"source":           {"source", "leadSource", "lead_source", "Source"},
			"domain":           {"domain"},
			"country":          {"country", "Country"},
			"product_name":     {"productName", "product_name"},
			"deal_name":        {"dealName", "deal_name"},
			"closed_deal_name": {"closedDealName", "closed_deal_name"},
			"deal_amount":      {"dealAmount", "deal_amount", "amount"},
			"deal_date":        {"dealDate", "deal_date"},
			"user_name":        {"userName", "user_name"},
			"category":         {"category"},
			"offer_title":      {"offerTitle", "offer_title"},
			"package_type":     {"subCategory", "packageType", "package_type"},
			"license_type":     {"licenseType", "license_type"},
			"users":            {"users", "userCount"},
			"website":          {"website", "Website"},
		},
		ValidationRules: ValidationRules{
			{Field: "email", Pattern: `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`},
			{Field: "phone", Pattern: `^[\+]?[1-9][\d]{0,15}$`},
			{Field: "name", Required: true, MinLength: 2},
		},
		TransformationRules: map[string]TransformRule{
			"phone":      {RemoveSpaces: true, RemoveSpecialChars: true},
			"email":      {ToLowerCase: true, Trim: true},
			"name":       {TitleCase: true, Trim: true},
			"first_name": {Trim: true},
			"last_name":  {Trim: true},
			"company":    {Trim: true},
			"website":    {Trim: true, ToLowerCase: true, AddProtocol: "https"},
		},
		CRMFieldMappings: map[string]map[string]string{
			"Contact": {
				"Last_Name":   "name",
				"Email":       "email",
				"Mobile":      "phone",
				"Description": "message",
				"Title":       "user_title",
			},
			"Company": {
				"Account_Name":    "company",
				"Website":         "website",
				"Billing_Country": "country",
			},
			"Deal": {
				"Deal_Name":    "deal_name",
				"Amount":       "deal_amount",
				"Closing_Date": "closing_date",
				"Description":  "message",
				"Lead_Source":  "source",
			},
			"Product": {
				"Product_Name":     "product_name",
				"Product_Code":     "item_id",
				"Product_Category": "category",
			},
		},
		DefaultValues: map[string]any{
			"Contact": map[string]any{"Lead_Source": "Webhook", "Priority": "Medium"},
			"Deal":    map[string]any{"Lead_Source": "Webhook"},
			"Product": map[string]any{"Product_Active": "true"},
		},
		LicenseEventRules: LicenseEventRules{
			TrialEvents:            []string{"visualmaker.license.trial", "visualmaker.license.downloadTrial"},
			ActivationEvents:       []string{"user.login.activate"},
			PurchaseEvents:         []string{"visualmaker.license.purchase", "visualmaker.license.purchaseCompleted"},
			PurchaseInitiateEvents: []string{"visualmaker.license.purchaseInitiate"},
			RenewalEvents:          []string{"visualmaker.license.renewal"},
			RenewalInitiateEvents:  []string{"visualmaker.license.renewalInitiate"},
			CancellationEvents:     []string{"visualmaker.license.cancel", "visualmaker.license.cancelled"},
		},
		StageMapping: StageMapping{
			Trial: TrialStages{
				NewContact: map[string]string{
					"website": "Trial - Website",
					"mp":      "Sample - MP",
				},
				ExistingContact: map[string]string{
					"pbi marketplace": "Sample - MP",
					"powerbi":         "Sample - MP",
					"spza":            "Sample - MP",
					"website":         "Trial - Website",
				},
				NewContactDefault:      "Sample - Downloaded",
				ExistingContactDefault: "Trial - License",
			},
			Activation: map[string]string{
				"user.login.activate": "Trial - Activated",
			},
			Purchase: PurchaseStages{
				Completed: "Closed Won",
				Initiated: "Purchase Initiated",
			},
			PurchaseInitiate: "Purchase Initiated",
			Renewal:          "Renewal",
			RenewalInitiate:  "Renewal Initiated",
		},
		SourceMapping: map[string]string{
			"website":     "Website",
			"mp":          "PBI Marketplace",
			"marketplace": "PBI Marketplace",
		},
	}
}
