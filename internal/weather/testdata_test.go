package weather

const fullResponse = `<response xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XML-Schema-instance" version="1.2" xsi:noNamespaceSchemaLocation="http://aviationweather.gov/adds/schema/metar1_2.xsd">
<request_index>71114711</request_index>
<data_source name="metars"/>
<request type="retrieve"/>
<errors/>
<warnings/>
<time_taken_ms>249</time_taken_ms>
<data num_results="1">
<METAR>
<raw_text>KL18 222035Z AUTO 23009G16KT 10SM CLR A2990 RMK AO2</raw_text>
<station_id>KL18</station_id>
<latitude>33.35</latitude>
<longitude>-117.25</longitude>
<altim_in_hg>29.899607</altim_in_hg>
</METAR>
</data>
</response>`

const emptyResponse = `<response xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XML-Schema-instance" version="1.2" xsi:noNamespaceSchemaLocation="http://aviationweather.gov/adds/schema/metar1_2.xsd">
<request_index>60222216</request_index>
<data_source name="metars"/>
<request type="retrieve"/>
<errors/>
<warnings/>
<time_taken_ms>7</time_taken_ms>
<data num_results="0"/>
</response>`

const errorResponse = `<response version="1.2">
<request_index>59450188</request_index>
<data_source name="metars"/>
<request type="retrieve"/>
<errors>
<error>Query must be constrained by time</error>
</errors>
<warnings/>
<time_taken_ms>0</time_taken_ms>
</response>`

const klQNH = 29.899607 * 1013.25 / 29.92126
